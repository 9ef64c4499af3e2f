package cli

import (
	"fmt"

	"pagecraft/internal/editor"
	"pagecraft/internal/model"

	"github.com/charmbracelet/lipgloss"
	ltree "github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"
)

var (
	treeRootStyle   = lipgloss.NewStyle().Bold(true)
	treeMarkerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newTreeCmd(app *App) *cobra.Command {
	var text bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the instance tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if text {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), renderTree(s.ed).String())
				return err
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"root":       s.ed.Root(),
					"selectedId": s.ed.SelectedID(),
					"isolatedId": s.ed.IsolatedID(),
				},
			})
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "Render the tree as text")
	return cmd
}

func renderTree(ed *editor.Editor) *ltree.Tree {
	t := renderNode(ed, ed.Root())
	return t.RootStyle(treeRootStyle).Enumerator(ltree.RoundedEnumerator)
}

func renderNode(ed *editor.Editor, in model.Instance) *ltree.Tree {
	t := ltree.Root(nodeLabel(ed, in))
	for _, c := range in.Children {
		if len(c.Children) == 0 {
			t.Child(nodeLabel(ed, c))
			continue
		}
		t.Child(renderNode(ed, c))
	}
	return t
}

func nodeLabel(ed *editor.Editor, in model.Instance) string {
	s := in.Type + " " + in.ID
	if in.Label != "" && in.Label != in.Type {
		s += " " + fmt.Sprintf("%q", in.Label)
	}
	var marks []string
	if l, ok := ed.Link(in.ID); ok {
		if l.IsMaster {
			marks = append(marks, "master:"+l.MasterID)
		} else {
			marks = append(marks, "linked:"+l.MasterID)
		}
	}
	if in.ID == ed.SelectedID() {
		marks = append(marks, "selected")
	}
	for _, m := range marks {
		s += " " + treeMarkerStyle.Render("["+m+"]")
	}
	return s
}
