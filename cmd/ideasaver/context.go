package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/account"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/auth"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/config"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/functions"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/recordings"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
)

var (
	errNotSignedIn = apperrors.Authentication("not_signed_in", "Not signed in. Run `ideasaver login` first.")
	errNoPlan      = apperrors.Resource("no_plan", "Choose a plan first with `ideasaver plan free` or `ideasaver redeem <code>`.")
)

type globalFlags struct {
	config  string
	apiURL  string
	dataDir string
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.apiURL != "" {
			cfg.Client.APIBaseURL = c.flags.apiURL
		}
		if c.flags.dataDir != "" {
			cfg.Client.DataDir = c.flags.dataDir
		}
		if err := cfg.ValidateClient(); err != nil {
			c.configErr = err
			return
		}
		if err := os.MkdirAll(cfg.Client.DataDir, 0o700); err != nil {
			c.configErr = fmt.Errorf("create data dir: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// app wires the client side: API client, session source, state machine,
// local store and account workflows
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	api     *functions.Client
	auth    *auth.Client
	machine *session.Machine
	store   *recordings.Store
	account *account.Service
}

func newApp(cfg *config.Config, logOut io.Writer, verbose bool) (*app, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := logging.New(zerolog.ConsoleWriter{Out: logOut, NoColor: true}, level)

	api := functions.NewClient(cfg.Client.APIBaseURL, cfg.Client.RequestTimeout, nil)
	authClient := auth.NewClient(api, cfg.Client.DataDir)
	authClient.SetLogger(logger)

	store, err := recordings.Open(cfg.Client.StoreBackend, cfg.Client.DataDir)
	if err != nil {
		return nil, err
	}

	machine := session.New(authClient, api, session.NewRouteTracker(session.RouteHome),
		session.WithEventSink(session.MultiSink{
			session.LoggingSink{Logger: logger},
			session.PrometheusSink{},
		}),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		api:     api,
		auth:    authClient,
		machine: machine,
		store:   store,
		account: account.NewService(machine, api, logger),
	}, nil
}

func (a *app) close() {
	a.machine.Close()
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close local store")
	}
}

// withApp builds the app, loads the session and runs fn
func (c *commandContext) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, cmd.ErrOrStderr(), c.flags.verbose)
	if err != nil {
		return err
	}
	defer a.close()
	a.logger.Debugf("Using %s store in %s, backend %s", cfg.Client.StoreBackend, cfg.Client.DataDir, cfg.Client.APIBaseURL)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.machine.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// signedIn requires a session and a loaded profile
func (a *app) signedIn() (session.Snapshot, error) {
	snap := a.machine.Snapshot()
	switch snap.State {
	case session.StateAnonymous, session.StateInitializing:
		return snap, errNotSignedIn
	case session.StateProfileUnavailable:
		return snap, session.ErrProfileUnavailable
	}
	return snap, nil
}

// enter navigates to route and fails when the redirect policy sends the
// user elsewhere
func (a *app) enter(route string) (session.Snapshot, error) {
	landed := a.machine.Visit(route)
	snap, err := a.signedIn()
	if err != nil {
		return snap, err
	}
	switch landed {
	case route:
		return snap, nil
	case session.RouteLogin:
		return snap, errNotSignedIn
	case session.RoutePlanSelection:
		return snap, errNoPlan
	default:
		return snap, fmt.Errorf("cannot open %s from %s", route, landed)
	}
}

// formatError renders err for the terminal
func formatError(err error) string {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return "Error: " + err.Error()
	}
	msg := "Error: " + appErr.Message
	if appErr.Details != "" {
		msg += " (" + appErr.Details + ")"
	}
	return msg
}
