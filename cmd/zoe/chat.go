package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/presenter"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a single message through the pipeline",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		application, err := newApp(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize")
			os.Exit(1)
		}
		defer func() {
			if closeErr := application.Close(); closeErr != nil {
				logger.G(ctx).WithError(closeErr).Error("failed to close database")
			}
		}()

		userID, _ := cmd.Flags().GetString("user")
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		message := strings.Join(args, " ")
		response := application.router.Route(ctx, userID, sessionID, message)

		presenter.Info(response.Message)
		logger.G(ctx).WithFields(map[string]any{
			"source":     response.Source,
			"latency_ms": response.LatencyMS,
		}).Debug("message routed")
	},
}

func init() {
	chatCmd.Flags().String("user", "default", "User ID for the message")
	chatCmd.Flags().String("session", "", "Session ID (random when empty)")
}
