package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/presenter"
)

func init() {
	viper.SetEnvPrefix("ZOE")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.zoe")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	viper.SetDefault("skills.core_dir", "skills/core")
	viper.SetDefault("skills.modules_dir", "skills/modules")
	viper.SetDefault("llm.provider", "ollama")
}

var rootCmd = &cobra.Command{
	Use:   "zoe",
	Short: "Zoe personal assistant backend",
	Long: `Zoe is a personal assistant backend. It routes chat messages through
skill triggers, pattern-matched intents and an LLM fallback, and exposes
the pipeline over an HTTP API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning("invalid log level, using info")
		}
		logger.SetLogFormat(viper.GetString("log_format"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

// zoeHome returns the state directory, creating it if needed.
func zoeHome() (string, error) {
	if base := os.Getenv("ZOE_BASE_PATH"); base != "" {
		return base, os.MkdirAll(base, 0o755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".zoe")
	return dir, os.MkdirAll(dir, 0o755)
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider (ollama, openai, anthropic)")
	rootCmd.PersistentFlags().String("model", "", "LLM model (overrides config)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))

	rootCmd.AddCommand(withTracing(serveCmd))
	rootCmd.AddCommand(withTracing(chatCmd))
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(versionCmd)

	ctx := context.Background()

	shutdownTracer, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to shut down tracer")
			}
		}()
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
