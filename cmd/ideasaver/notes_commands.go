package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/recordings"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

const previewLength = 40

func newNotesCommand(ctx *commandContext) *cobra.Command {
	notesCmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"history"},
		Short:   "Browse and manage saved voice notes",
	}

	notesCmd.AddCommand(newNotesListCommand(ctx))
	notesCmd.AddCommand(newNotesShowCommand(ctx))
	notesCmd.AddCommand(newNotesDeleteCommand(ctx))
	notesCmd.AddCommand(newNotesRenameCommand(ctx))
	notesCmd.AddCommand(newNotesArchiveCommand(ctx))
	notesCmd.AddCommand(newNotesPriorityCommand(ctx))
	notesCmd.AddCommand(newNotesSyncCommand(ctx))

	return notesCmd
}

// withNotes opens the history route and runs fn for the signed-in user
func (c *commandContext) withNotes(cmd *cobra.Command, fn func(ctx context.Context, a *app, userID string) error) error {
	return c.withApp(cmd, func(ctx context.Context, a *app) error {
		snap, err := a.enter(session.RouteHistory)
		if err != nil {
			return err
		}
		return fn(ctx, a, snap.User.ID)
	})
}

func newNotesListCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON   bool
		archived bool
		search   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withNotes(cmd, func(c context.Context, a *app, userID string) error {
				list, err := a.store.LoadAll(c, userID)
				if err != nil {
					return err
				}
				recordings.SortByDateDesc(list)

				visible := list[:0]
				for _, rec := range list {
					if rec.IsArchived == archived && matchesSearch(rec, search) {
						visible = append(visible, rec)
					}
				}

				if asJSON {
					return writeJSON(cmd, visible)
				}
				if len(visible) == 0 {
					if strings.TrimSpace(search) != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "No notes match %q\n", search)
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), "No notes yet. Record one with `ideasaver record`.")
					return nil
				}

				rows := make([][]string, 0, len(visible))
				for _, rec := range visible {
					rows = append(rows, []string{
						shortID(rec.ID),
						rec.Date.Local().Format("2006-01-02 15:04"),
						formatDuration(rec.Duration),
						string(rec.Priority),
						rec.Name,
						preview(rec.Transcription),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Date", "Length", "Priority", "Name", "Transcription"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&archived, "archived", false, "List archived notes instead")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only notes whose name, transcription or summary contains this text")
	return cmd
}

// matchesSearch is a case-insensitive substring match over name,
// transcription and summary. An empty term matches everything.
func matchesSearch(rec models.AudioRecording, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Name), term) {
		return true
	}
	for _, text := range []*string{rec.Transcription, rec.Summary} {
		if text != nil && strings.Contains(strings.ToLower(*text), term) {
			return true
		}
	}
	return false
}

func newNotesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one note with its transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withNotes(cmd, func(c context.Context, a *app, userID string) error {
				rec, err := findNote(c, a, userID, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n", rec.Name)
				fmt.Fprintf(out, "ID:       %s\n", rec.ID)
				fmt.Fprintf(out, "Date:     %s\n", rec.Date.Local().Format(time.RFC1123))
				fmt.Fprintf(out, "Length:   %s\n", formatDuration(rec.Duration))
				fmt.Fprintf(out, "Priority: %s\n", rec.Priority)
				if rec.Transcription != nil {
					fmt.Fprintf(out, "\n%s\n", *rec.Transcription)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newNotesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note from this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withNotes(cmd, func(c context.Context, a *app, userID string) error {
				rec, err := findNote(c, a, userID, args[0])
				if err != nil {
					return err
				}
				if err := a.store.Delete(c, userID, rec.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", rec.Name)
				return nil
			})
		},
	}
}

func newNotesRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			if name == "" {
				return apperrors.Validation("invalid_name", "Name must not be empty")
			}
			return updateNote(cmd, ctx, args[0], models.RecordingPatch{Name: models.String(name)}, "Renamed")
		},
	}
}

func newNotesArchiveCommand(ctx *commandContext) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a note, or bring it back with --undo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verb := "Archived"
			if undo {
				verb = "Unarchived"
			}
			return updateNote(cmd, ctx, args[0], models.RecordingPatch{IsArchived: models.Bool(!undo)}, verb)
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Unarchive instead")
	return cmd
}

func newNotesPriorityCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "priority <id> <low|medium|high>",
		Short: "Change a note's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := models.Priority(strings.ToLower(args[1]))
			if !validPriority(p) {
				return apperrors.Validation("invalid_priority", "Priority must be low, medium or high")
			}
			return updateNote(cmd, ctx, args[0], models.RecordingPatch{Priority: &p}, "Updated")
		},
	}
}

func newNotesSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id>",
		Short: "Back up a note to the cloud (full app only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withNotes(cmd, func(c context.Context, a *app, userID string) error {
				rec, err := findNote(c, a, userID, args[0])
				if err != nil {
					return err
				}
				jobID, err := a.api.SyncRecording(c, *rec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %q for cloud sync (job %s)\n", rec.Name, jobID)
				return nil
			})
		},
	}
}

func updateNote(cmd *cobra.Command, ctx *commandContext, ref string, patch models.RecordingPatch, verb string) error {
	return ctx.withNotes(cmd, func(c context.Context, a *app, userID string) error {
		rec, err := findNote(c, a, userID, ref)
		if err != nil {
			return err
		}
		if err := a.store.Update(c, userID, rec.ID, patch); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", verb, patch.Apply(*rec).Name)
		return nil
	})
}

// findNote resolves a full id or a unique id prefix
func findNote(ctx context.Context, a *app, userID, ref string) (*models.AudioRecording, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.Validation("missing_id", "Note id is required")
	}

	list, err := a.store.LoadAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	var match *models.AudioRecording
	for i := range list {
		if list[i].ID == ref {
			return &list[i], nil
		}
		if strings.HasPrefix(list[i].ID, ref) {
			if match != nil {
				return nil, apperrors.Validation("ambiguous_id", "More than one note matches that id").
					WithDetails("use more characters of the id")
			}
			match = &list[i]
		}
	}
	if match == nil {
		return nil, apperrors.NotFound("note_not_found", "No note with that id")
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func preview(text *string) string {
	if text == nil {
		return ""
	}
	runes := []rune(strings.Join(strings.Fields(*text), " "))
	if len(runes) <= previewLength {
		return string(runes)
	}
	return string(runes[:previewLength-3]) + "..."
}
