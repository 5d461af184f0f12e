package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
)

const passwordEnv = "IDEASAVER_PASSWORD"

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Account password (or set "+passwordEnv+", or type it on stdin)")
}

// resolve fills in missing values from the environment and stdin
func (f *credentialFlags) resolve(cmd *cobra.Command) (string, string, error) {
	in := bufio.NewReader(cmd.InOrStdin())

	email := strings.TrimSpace(f.email)
	if email == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
		line, err := readLine(in)
		if err != nil {
			return "", "", err
		}
		email = line
	}

	password := f.password
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := readLine(in)
		if err != nil {
			return "", "", err
		}
		password = line
	}
	return email, password, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				if _, err := a.auth.SignIn(c, email, password); err != nil {
					return err
				}
				return reportLanding(cmd, a)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newSignupCommand(ctx *commandContext) *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				if _, err := a.auth.SignUp(c, email, password); err != nil {
					return err
				}
				return reportLanding(cmd, a)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// reportLanding tells the user where the redirect policy sent them
func reportLanding(cmd *cobra.Command, a *app) error {
	snap, err := a.signedIn()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s\n", snap.User.Email)
	switch snap.State {
	case session.StateNoPlan:
		fmt.Fprintln(out, "Next: choose a plan with `ideasaver plan free` or redeem a gift code.")
	case session.StateWithPlan:
		fmt.Fprintf(out, "Credits: %s\n", creditsLabel(snap))
	}
	return nil
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				if err := a.machine.SignOut(c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

type statusView struct {
	State         string `json:"state"`
	Email         string `json:"email,omitempty"`
	Plan          string `json:"plan,omitempty"`
	PlanSelected  bool   `json:"planSelected"`
	Credits       *int   `json:"credits,omitempty"`
	Pro           bool   `json:"pro"`
	CloudSync     bool   `json:"cloudSync"`
	AutoSync      bool   `json:"autoSync"`
	DeletionAfter int    `json:"deletionPolicyDays"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session, plan and credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(_ context.Context, a *app) error {
				snap := a.machine.Snapshot()
				view := statusView{State: string(snap.State)}
				if snap.User != nil {
					view.Email = snap.User.Email
				}
				if p := snap.Profile; p != nil {
					view.Plan = string(p.CurrentPlan)
					view.PlanSelected = p.PlanSelected
					view.Pro = p.IsPro()
					view.CloudSync = p.CloudSyncEnabled
					view.AutoSync = p.AutoCloudSync
					view.DeletionAfter = p.DeletionPolicyDays
					if !view.Pro {
						credits := p.Credits
						view.Credits = &credits
					}
				}
				if asJSON {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				if snap.User == nil {
					fmt.Fprintln(out, "Not signed in")
					return nil
				}
				fmt.Fprintf(out, "Signed in as %s\n", view.Email)
				fmt.Fprintf(out, "State:      %s\n", view.State)
				if snap.Profile == nil {
					return nil
				}
				plan := view.Plan
				if !view.PlanSelected {
					plan = "not selected"
				}
				fmt.Fprintf(out, "Plan:       %s\n", plan)
				fmt.Fprintf(out, "Credits:    %s\n", creditsLabel(snap))
				fmt.Fprintf(out, "Cloud sync: %s (auto %s)\n", yesNo(view.CloudSync), yesNo(view.AutoSync))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func creditsLabel(snap session.Snapshot) string {
	if snap.Profile == nil {
		return "unknown"
	}
	if snap.Profile.IsPro() {
		return "unlimited"
	}
	return fmt.Sprintf("%d", snap.Profile.Credits)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
