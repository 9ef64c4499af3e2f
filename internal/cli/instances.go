package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pagecraft/internal/model"
	"pagecraft/internal/tree"

	"github.com/spf13/cobra"
)

func newInstancesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance", "inst"},
		Short:   "Instance tree commands",
	}
	cmd.AddCommand(newInstancesAddCmd(app))
	cmd.AddCommand(newInstancesAddTypeCmd(app))
	cmd.AddCommand(newInstancesUpdateCmd(app))
	cmd.AddCommand(newInstancesDeleteCmd(app))
	cmd.AddCommand(newInstancesMoveCmd(app))
	cmd.AddCommand(newInstancesShowCmd(app))
	cmd.AddCommand(newInstancesSelectCmd(app))
	cmd.AddCommand(newInstancesIsolateCmd(app))
	return cmd
}

func newInstancesAddCmd(app *App) *cobra.Command {
	var (
		typ       string
		label     string
		parentID  string
		index     int
		propsJSON string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an instance as given (no catalog defaults)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			inst := model.Instance{Type: strings.TrimSpace(typ), Label: strings.TrimSpace(label)}
			if propsJSON != "" {
				if err := json.Unmarshal([]byte(propsJSON), &inst.Props); err != nil {
					return writeErr(cmd, fmt.Errorf("invalid --props-json: %w", err))
				}
			}
			id, ok, err := s.ed.AddInstance(inst, parentID, index)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeErr(cmd, errNotFound("instance", parentID))
			}
			if err := s.commit(cmd.Context(), "instance.add", id, inst); err != nil {
				return writeErr(cmd, err)
			}
			added, _ := s.ed.FindInstance(id)
			return writeOut(cmd, app, map[string]any{"data": added})
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "Component type")
	cmd.Flags().StringVar(&label, "label", "", "Display label")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent instance id (default: root)")
	cmd.Flags().IntVar(&index, "index", -1, "Child index (negative appends)")
	cmd.Flags().StringVar(&propsJSON, "props-json", "", "Props as a JSON object")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newInstancesAddTypeCmd(app *App) *cobra.Command {
	var (
		parentID string
		index    int
	)

	cmd := &cobra.Command{
		Use:   "add-type <type>",
		Short: "Add a new instance of a catalog type with its default props",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, ok, err := s.ed.AddFromCatalog(args[0], parentID, index)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeErr(cmd, errNotFound("instance", parentID))
			}
			added, _ := s.ed.FindInstance(id)
			if err := s.commit(cmd.Context(), "instance.add", id, added); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": added})
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent instance id (default: root)")
	cmd.Flags().IntVar(&index, "index", -1, "Child index (negative appends)")
	return cmd
}

func newInstancesUpdateCmd(app *App) *cobra.Command {
	var (
		typ       string
		label     string
		props     []string
		propsJSON string
	)

	cmd := &cobra.Command{
		Use:   "update <instance-id>",
		Short: "Update type, label or props of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if _, ok := s.ed.FindInstance(id); !ok {
				return writeErr(cmd, errNotFound("instance", id))
			}

			var patch tree.Patch
			if cmd.Flags().Changed("type") {
				v := strings.TrimSpace(typ)
				patch.Type = &v
			}
			if cmd.Flags().Changed("label") {
				v := strings.TrimSpace(label)
				patch.Label = &v
			}
			if cmd.Flags().Changed("props-json") {
				patch.Props = map[string]any{}
				if err := json.Unmarshal([]byte(propsJSON), &patch.Props); err != nil {
					return writeErr(cmd, fmt.Errorf("invalid --props-json: %w", err))
				}
			}
			merge, err := parseProps(props)
			if err != nil {
				return writeErr(cmd, err)
			}
			if patch.Type == nil && patch.Label == nil && patch.Props == nil && len(merge) == 0 {
				return writeErr(cmd, errors.New("nothing to update (use --type, --label, --prop or --props-json)"))
			}

			changed := false
			if patch.Type != nil || patch.Label != nil || patch.Props != nil {
				changed = s.ed.UpdateInstance(id, patch) || changed
			}
			if len(merge) > 0 {
				changed = s.ed.MergeProps(id, merge) || changed
			}
			if !changed {
				return writeOut(cmd, app, map[string]any{"data": unchanged(id)})
			}
			inst, _ := s.ed.FindInstance(id)
			if err := s.commit(cmd.Context(), "instance.update", id, inst); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": inst})
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "New component type")
	cmd.Flags().StringVar(&label, "label", "", "New display label")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Prop to merge as key=value (value parsed as JSON when possible; repeatable)")
	cmd.Flags().StringVar(&propsJSON, "props-json", "", "Replace all props with a JSON object")
	return cmd
}

// parseProps turns key=value pairs into props. Values that parse as JSON keep their
// JSON type; anything else is a string.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --prop %q (expected key=value)", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func newInstancesDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <instance-id>",
		Short: "Delete an instance and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			ok, err := s.ed.DeleteInstance(id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeOut(cmd, app, map[string]any{"data": unchanged(id)})
			}
			if err := s.commit(cmd.Context(), "instance.delete", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "changed": true}})
		},
	}
	return cmd
}

func newInstancesMoveCmd(app *App) *cobra.Command {
	var (
		parentID string
		index    int
	)

	cmd := &cobra.Command{
		Use:   "move <instance-id>",
		Short: "Move an instance under a new parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			ok, err := s.ed.MoveInstance(id, parentID, index)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeOut(cmd, app, map[string]any{"data": unchanged(id)})
			}
			payload := map[string]any{"id": id, "parentId": parentID, "index": index}
			if err := s.commit(cmd.Context(), "instance.move", id, payload); err != nil {
				return writeErr(cmd, err)
			}
			payload["changed"] = true
			return writeOut(cmd, app, map[string]any{"data": payload})
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "New parent instance id (default: root)")
	cmd.Flags().IntVar(&index, "index", -1, "Child index (negative appends)")
	return cmd
}

func newInstancesShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <instance-id>",
		Short: "Show an instance with its link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			inst, ok := s.ed.FindInstance(id)
			if !ok {
				return writeErr(cmd, errNotFound("instance", id))
			}
			out := map[string]any{"instance": inst}
			if l, ok := s.ed.Link(inst.ID); ok {
				out["link"] = l
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	return cmd
}

func newInstancesSelectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select [instance-id]",
		Short: "Select an instance (no id clears the selection)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFocusCmd(cmd, app, args, "instance.select", func(s *session, id string) error {
				return s.ed.Select(id)
			})
		},
	}
	return cmd
}

func newInstancesIsolateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "isolate [instance-id]",
		Short: "Scope editing to one subtree (no id clears it)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFocusCmd(cmd, app, args, "instance.isolate", func(s *session, id string) error {
				return s.ed.Isolate(id)
			})
		},
	}
	return cmd
}

func runFocusCmd(cmd *cobra.Command, app *App, args []string, event string, set func(*session, string) error) error {
	s, err := loadSession(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	id := ""
	if len(args) == 1 {
		id = strings.TrimSpace(args[0])
	}
	if err := set(s, id); err != nil {
		return writeErr(cmd, err)
	}
	if err := s.commit(cmd.Context(), event, id, map[string]any{"id": id}); err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, map[string]any{
		"data": map[string]any{"selectedId": s.ed.SelectedID(), "isolatedId": s.ed.IsolatedID()},
	})
}
