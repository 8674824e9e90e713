package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoe-assistant/zoe/pkg/presenter"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect and manage registered skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered skills",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		application, err := newApp(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize")
			os.Exit(1)
		}
		defer application.Close()

		all := application.registry.Skills()
		if len(all) == 0 {
			presenter.Info("No skills registered")
			return
		}

		presenter.Section("Registered Skills")
		for _, skill := range all {
			status := "active"
			if !skill.Active {
				status = "pending approval"
			}
			presenter.Info(fmt.Sprintf("%-20s %-12s %-18s %s", skill.Name, skill.Source, status, skill.Description))
		}
	},
}

var skillsApproveCmd = &cobra.Command{
	Use:   "approve <name>",
	Short: "Approve a skill whose content changed on disk",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		application, err := newApp(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize")
			os.Exit(1)
		}
		defer application.Close()

		approved, err := application.registry.ApproveSkill(ctx, args[0])
		if err != nil {
			presenter.Error(err, "failed to approve skill")
			os.Exit(1)
		}
		if !approved {
			presenter.Warning(fmt.Sprintf("Skill %q is not registered", args[0]))
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Approved skill %q", args[0]))
	},
}

var skillsContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the skills overview injected into LLM prompts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		application, err := newApp(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize")
			os.Exit(1)
		}
		defer application.Close()

		skillContext := application.registry.LLMContext()
		if skillContext == "" {
			presenter.Info("No active skills")
			return
		}
		fmt.Println(skillContext)
	},
}

func init() {
	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsApproveCmd)
	skillsCmd.AddCommand(skillsContextCmd)
}
