package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/audio"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/capture"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

type recordFlags struct {
	duration     time.Duration
	noTranscribe bool
	name         string
	priority     string
}

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var flags recordFlags
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a voice note, transcribe it and save it",
		Long: "Records from the microphone until Enter is pressed (or for --duration),\n" +
			"then transcribes the note for credits and saves it on this device.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app) error {
				return runRecord(c, cmd, a, flags)
			})
		},
	}

	cmd.Flags().DurationVarP(&flags.duration, "duration", "d", 0, "Stop after this long instead of waiting for Enter")
	cmd.Flags().BoolVar(&flags.noTranscribe, "no-transcribe", false, "Save the audio without transcribing it")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "Name for the note instead of the generated title")
	cmd.Flags().StringVar(&flags.priority, "priority", "", "Priority of the note: low, medium or high")
	return cmd
}

func runRecord(ctx context.Context, cmd *cobra.Command, a *app, flags recordFlags) error {
	snap, err := a.enter(session.RouteRecord)
	if err != nil {
		return err
	}

	prefs, err := a.store.LoadSettings(ctx, snap.User.ID)
	if err != nil {
		return err
	}
	if prefs == nil {
		prefs = &models.Settings{}
	}

	priority := models.Priority(valueOr(flags.priority, string(prefs.DefaultPriority)))
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !validPriority(priority) {
		return apperrors.Validation("invalid_priority", "Priority must be low, medium or high")
	}

	mic := audio.NewMicrophone(audio.Config{
		Command:     a.cfg.Client.FFmpegPath,
		InputFormat: valueOr(prefs.MicrophoneFormat, a.cfg.Client.InputFormat),
		InputDevice: valueOr(prefs.MicrophoneDevice, a.cfg.Client.InputDevice),
	})

	stderr := cmd.ErrOrStderr()
	ctrl := capture.NewController(mic, a.api, a.api, a.store, a.machine,
		capture.WithCloudSync(a.api),
		capture.WithLogger(a.logger),
		capture.WithDefaultPriority(priority),
		capture.OnTick(func(elapsed int) {
			fmt.Fprintf(stderr, "\rRecording %s", formatDuration(elapsed))
		}),
	)

	if err := ctrl.CheckPermission(ctx); err != nil {
		return err
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	if flags.duration > 0 {
		fmt.Fprintf(stderr, "Recording for %s...\n", flags.duration)
	} else {
		fmt.Fprintln(stderr, "Recording... press Enter to stop.")
	}
	if err := waitForStop(ctx, cmd, flags.duration); err != nil {
		if derr := ctrl.Discard(); derr != nil {
			a.logger.WithError(derr).Warn("Failed to discard recording")
		}
		return err
	}

	draft, err := ctrl.Stop(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "\rRecorded %s\n", formatDuration(draft.Duration))

	if !flags.noTranscribe {
		if _, err := ctrl.Transcribe(ctx); err != nil {
			if ctx.Err() != nil {
				_ = ctrl.Discard()
				return ctx.Err()
			}
			// the draft is still in review, so the audio is kept
			fmt.Fprintf(stderr, "%s\nSaving the note without a transcription.\n", formatError(err))
		}
	}

	rec, err := ctrl.Save(ctx)
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(flags.name); name != "" {
		if err := a.store.Update(ctx, snap.User.ID, rec.ID, models.RecordingPatch{Name: models.String(name)}); err != nil {
			return err
		}
		rec.Name = name
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %q (%s)\n", rec.Name, shortID(rec.ID))
	if rec.Transcription != nil {
		fmt.Fprintf(out, "\n%s\n", *rec.Transcription)
	}
	if after := a.machine.Snapshot(); after.Profile != nil && !after.Profile.IsPro() {
		fmt.Fprintf(out, "\nCredits left: %d\n", after.Profile.Credits)
	}
	return nil
}

// waitForStop returns when the duration passes or the user presses Enter
func waitForStop(ctx context.Context, cmd *cobra.Command, duration time.Duration) error {
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	pressed := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		close(pressed)
	}()

	select {
	case <-pressed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
