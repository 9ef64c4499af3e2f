package cli

import (
	"strings"

	"pagecraft/internal/model"

	"github.com/spf13/cobra"
)

func newStylesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "styles",
		Aliases: []string{"style"},
		Short:   "Style source commands",
	}
	cmd.AddCommand(newStylesCreateCmd(app))
	cmd.AddCommand(newStylesListCmd(app))
	cmd.AddCommand(newStylesShowCmd(app))
	cmd.AddCommand(newStylesSetCmd(app))
	cmd.AddCommand(newStylesUnsetCmd(app))
	cmd.AddCommand(newStylesRenameCmd(app))
	cmd.AddCommand(newStylesDeleteCmd(app))
	cmd.AddCommand(newStylesAttachCmd(app))
	cmd.AddCommand(newStylesDetachCmd(app))
	cmd.AddCommand(newStylesComputedCmd(app))
	cmd.AddCommand(newStylesPreviewCmd(app))
	cmd.AddCommand(newStylesEditingStateCmd(app))
	return cmd
}

// cascadeFlags are the breakpoint/state pair shared by declaration commands.
type cascadeFlags struct {
	breakpoint string
	state      string
}

func (f *cascadeFlags) bind(cmd *cobra.Command, withState bool) {
	cmd.Flags().StringVar(&f.breakpoint, "breakpoint", "base", "Breakpoint (base|tablet|mobile)")
	if withState {
		cmd.Flags().StringVar(&f.state, "state", "", "Interaction state (default: none)")
	}
}

func (f cascadeFlags) parse() (model.Breakpoint, model.State, error) {
	bp, err := model.ParseBreakpoint(f.breakpoint)
	if err != nil {
		return "", "", err
	}
	st, err := model.ParseState(f.state)
	if err != nil {
		return "", "", err
	}
	return bp, st, nil
}

func newStylesCreateCmd(app *App) *cobra.Command {
	var (
		name string
		kind string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a style source",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := model.ParseStyleKind(kind)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := s.ed.CreateStyleSource(k, name)
			src, _ := s.ed.StyleSource(id)
			if err := s.commit(cmd.Context(), "style.create", id, src); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": src})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Source name (default: its id)")
	cmd.Flags().StringVar(&kind, "kind", "local", "Source kind (local|global)")
	return cmd
}

func newStylesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List style sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": s.ed.StyleSources()})
		},
	}
	return cmd
}

func newStylesShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <source-id>",
		Short: "Show a style source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			src, ok := s.ed.StyleSource(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("style source", args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": src})
		},
	}
	return cmd
}

func newStylesSetCmd(app *App) *cobra.Command {
	var cf cascadeFlags

	cmd := &cobra.Command{
		Use:   "set <source-id> <property> <value>",
		Short: "Set one declaration of a style source",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, st, err := cf.parse()
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			sourceID := strings.TrimSpace(args[0])
			if err := s.ed.SetStyle(sourceID, args[1], args[2], bp, st); err != nil {
				return writeErr(cmd, err)
			}
			src, _ := s.ed.StyleSource(sourceID)
			payload := map[string]any{"property": args[1], "value": args[2], "breakpoint": bp, "state": st}
			if err := s.commit(cmd.Context(), "style.set", sourceID, payload); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": src})
		},
	}
	cf.bind(cmd, true)
	return cmd
}

func newStylesUnsetCmd(app *App) *cobra.Command {
	var cf cascadeFlags

	cmd := &cobra.Command{
		Use:   "unset <source-id> <property>",
		Short: "Remove one declaration of a style source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, st, err := cf.parse()
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			sourceID := strings.TrimSpace(args[0])
			if !s.ed.RemoveStyle(sourceID, args[1], bp, st) {
				return writeOut(cmd, app, map[string]any{"data": unchanged(sourceID)})
			}
			payload := map[string]any{"property": args[1], "breakpoint": bp, "state": st}
			if err := s.commit(cmd.Context(), "style.unset", sourceID, payload); err != nil {
				return writeErr(cmd, err)
			}
			src, _ := s.ed.StyleSource(sourceID)
			return writeOut(cmd, app, map[string]any{"data": src})
		},
	}
	cf.bind(cmd, true)
	return cmd
}

func newStylesRenameCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <source-id> <name>",
		Short: "Rename a style source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if err := s.ed.RenameStyleSource(id, args[1]); err != nil {
				return writeErr(cmd, err)
			}
			src, _ := s.ed.StyleSource(id)
			if err := s.commit(cmd.Context(), "style.rename", id, map[string]any{"name": src.Name}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": src})
		},
	}
	return cmd
}

func newStylesDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <source-id>",
		Short: "Delete a style source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if !s.ed.DeleteStyleSource(id) {
				return writeOut(cmd, app, map[string]any{"data": unchanged(id)})
			}
			if err := s.commit(cmd.Context(), "style.delete", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "changed": true}})
		},
	}
	return cmd
}

func newStylesAttachCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach <instance-id> <source-id>",
		Short: "Append a style source to an instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceListCmd(cmd, app, args, "style.attach", func(s *session, inst, src string) (bool, error) {
				return s.ed.AttachStyleSource(inst, src)
			})
		},
	}
	return cmd
}

func newStylesDetachCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detach <instance-id> <source-id>",
		Short: "Remove a style source from an instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceListCmd(cmd, app, args, "style.detach", func(s *session, inst, src string) (bool, error) {
				return s.ed.DetachStyleSource(inst, src)
			})
		},
	}
	return cmd
}

func runSourceListCmd(cmd *cobra.Command, app *App, args []string, event string, apply func(*session, string, string) (bool, error)) error {
	s, err := loadSession(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	instID, srcID := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	changed, err := apply(s, instID, srcID)
	if err != nil {
		return writeErr(cmd, err)
	}
	if !changed {
		return writeOut(cmd, app, map[string]any{"data": unchanged(instID)})
	}
	if err := s.commit(cmd.Context(), event, instID, map[string]any{"sourceId": srcID}); err != nil {
		return writeErr(cmd, err)
	}
	inst, _ := s.ed.FindInstance(instID)
	return writeOut(cmd, app, map[string]any{"data": inst})
}

func newStylesComputedCmd(app *App) *cobra.Command {
	var cf cascadeFlags

	cmd := &cobra.Command{
		Use:   "computed <instance-id>",
		Short: "Resolve the styles of an instance at a breakpoint and state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, st, err := cf.parse()
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !cmd.Flags().Changed("state") {
				st = s.ed.EditingState()
			}
			out, err := s.ed.ComputedStyles(args[0], bp, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cf.bind(cmd, true)
	return cmd
}

func newStylesPreviewCmd(app *App) *cobra.Command {
	var cf cascadeFlags

	cmd := &cobra.Command{
		Use:   "preview <instance-id>",
		Short: "Resolve what the canvas shows for an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, _, err := cf.parse()
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			out, err := s.ed.PreviewStyles(args[0], bp)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cf.bind(cmd, false)
	return cmd
}

func newStylesEditingStateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editing-state [state]",
		Short: "Show or set the state being edited on the selected instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(args) == 1 {
				st, err := model.ParseState(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				s.ed.SetEditingState(st)
				if err := s.commit(cmd.Context(), "style.editing_state", s.ed.SelectedID(), map[string]any{"state": st}); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"state": s.ed.EditingState(), "selectedId": s.ed.SelectedID()},
			})
		},
	}
	return cmd
}
