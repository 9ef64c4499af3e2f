package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newCopyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <instance-id>",
		Short: "Copy an instance to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if err := s.ed.Copy(id); err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "clipboard.copy", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			entry, _ := s.ed.ClipboardEntry()
			return writeOut(cmd, app, map[string]any{"data": entry})
		},
	}
	return cmd
}

func newCutCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cut <instance-id>",
		Short: "Copy an instance to the clipboard and delete it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if err := s.ed.Cut(id); err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "clipboard.cut", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			entry, _ := s.ed.ClipboardEntry()
			return writeOut(cmd, app, map[string]any{"data": entry})
		},
	}
	return cmd
}

func newPasteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Paste the clipboard into the selected container (or the root)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := s.ed.Paste()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "clipboard.paste", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			inst, _ := s.ed.FindInstance(id)
			return writeOut(cmd, app, map[string]any{"data": inst})
		},
	}
	return cmd
}

func newDuplicateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "duplicate <instance-id>",
		Aliases: []string{"dup"},
		Short:   "Insert a linkage-aware copy right after an instance",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			src := strings.TrimSpace(args[0])
			id, err := s.ed.Duplicate(src)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "instance.duplicate", id, map[string]any{"sourceId": src}); err != nil {
				return writeErr(cmd, err)
			}
			inst, _ := s.ed.FindInstance(id)
			return writeOut(cmd, app, map[string]any{"data": inst})
		},
	}
	return cmd
}

func newUndoCmd(app *App) *cobra.Command {
	return newHistoryStepCmd(app, "undo", "Restore the previous tree snapshot", "history.undo", func(s *session) bool {
		return s.ed.Undo()
	})
}

func newRedoCmd(app *App) *cobra.Command {
	return newHistoryStepCmd(app, "redo", "Re-apply the next tree snapshot", "history.redo", func(s *session) bool {
		return s.ed.Redo()
	})
}

func newHistoryStepCmd(app *App, use, short, event string, step func(*session) bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			changed := step(s)
			if changed {
				if err := s.commit(cmd.Context(), event, s.ed.DocumentID(), map[string]any{}); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"changed": changed,
					"canUndo": s.ed.CanUndo(),
					"canRedo": s.ed.CanRedo(),
				},
			})
		},
	}
	return cmd
}
