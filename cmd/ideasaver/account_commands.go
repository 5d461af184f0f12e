package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/account"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Choose how you use Idea Saver",
	}

	planCmd.AddCommand(&cobra.Command{
		Use:   "free",
		Short: "Start on the free plan with the starter credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				if _, err := a.signedIn(); err != nil {
					return err
				}
				profile, err := a.account.SelectFreePlan(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Free plan selected. Credits: %d\n", profile.Credits)
				return nil
			})
		},
	})

	return planCmd
}

func newRedeemCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a gift code for credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				if _, err := a.signedIn(); err != nil {
					return err
				}
				credits, err := a.account.RedeemGiftCode(c, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Gift code redeemed. Credits: %d\n", credits)
				return nil
			})
		},
	}
}

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	var (
		cloudSync       bool
		autoSync        bool
		deletionDays    int
		defaultPriority string
		micDevice       string
		micFormat       string
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change sync and recording settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				snap, err := a.enter(session.RouteSettings)
				if err != nil {
					return err
				}
				userID := snap.User.ID

				var update account.SettingsUpdate
				if cmd.Flags().Changed("cloud-sync") {
					update.CloudSyncEnabled = models.Bool(cloudSync)
				}
				if cmd.Flags().Changed("auto-sync") {
					update.AutoCloudSync = models.Bool(autoSync)
				}
				if cmd.Flags().Changed("deletion-days") {
					update.DeletionPolicyDays = models.Int(deletionDays)
				}
				profile, err := a.account.UpdateSettings(c, update)
				if err != nil {
					return err
				}

				prefs, err := a.store.LoadSettings(c, userID)
				if err != nil {
					return err
				}
				if prefs == nil {
					prefs = &models.Settings{}
				}
				changed := false
				if cmd.Flags().Changed("default-priority") {
					p := models.Priority(defaultPriority)
					if !validPriority(p) {
						return apperrors.Validation("invalid_priority", "Priority must be low, medium or high")
					}
					prefs.DefaultPriority = p
					changed = true
				}
				if cmd.Flags().Changed("mic-device") {
					prefs.MicrophoneDevice = micDevice
					changed = true
				}
				if cmd.Flags().Changed("mic-format") {
					prefs.MicrophoneFormat = micFormat
					changed = true
				}
				if changed {
					if err := a.store.SaveSettings(c, userID, *prefs); err != nil {
						return err
					}
				}

				if asJSON {
					return writeJSON(cmd, map[string]interface{}{"profile": profile, "local": prefs})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cloud sync:        %s\n", yesNo(profile.CloudSyncEnabled))
				fmt.Fprintf(out, "Auto cloud sync:   %s\n", yesNo(profile.AutoCloudSync))
				fmt.Fprintf(out, "Delete after days: %s\n", deletionLabel(profile.DeletionPolicyDays))
				fmt.Fprintf(out, "Default priority:  %s\n", valueOr(string(prefs.DefaultPriority), string(models.PriorityMedium)))
				fmt.Fprintf(out, "Microphone:        %s\n", valueOr(prefs.MicrophoneDevice, a.cfg.Client.InputDevice))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cloudSync, "cloud-sync", false, "Back up notes to the cloud (full app only)")
	cmd.Flags().BoolVar(&autoSync, "auto-sync", false, "Upload each note right after saving it (full app only)")
	cmd.Flags().IntVar(&deletionDays, "deletion-days", 0, "Delete cloud copies after this many days, 0 keeps them")
	cmd.Flags().StringVar(&defaultPriority, "default-priority", "", "Priority given to new notes: low, medium or high")
	cmd.Flags().StringVar(&micDevice, "mic-device", "", "Capture device passed to ffmpeg")
	cmd.Flags().StringVar(&micFormat, "mic-format", "", "Capture input format passed to ffmpeg (pulse, alsa, avfoundation)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func validPriority(p models.Priority) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return true
	}
	return false
}

func deletionLabel(days int) string {
	if days <= 0 {
		return "never"
	}
	return fmt.Sprintf("%d", days)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
