package aispec

import (
	"strings"

	"pagecraft/internal/ids"
	"pagecraft/internal/model"
)

// FlatStyle is the declaration set minted for one component.
type FlatStyle struct {
	Name   string            `json:"name" yaml:"name"`
	Base   map[string]string `json:"base,omitempty" yaml:"base,omitempty"`
	Tablet map[string]string `json:"tablet,omitempty" yaml:"tablet,omitempty"`
	Mobile map[string]string `json:"mobile,omitempty" yaml:"mobile,omitempty"`
}

// FlatInstance is one node of a flattened spec and the id of the node it belongs under.
type FlatInstance struct {
	ParentID string         `json:"parentId" yaml:"parentId"`
	Instance model.Instance `json:"instance" yaml:"instance"`
}

type FlattenResult struct {
	// Instances lists every node in pre-order. The first entry is the component root with its
	// children populated; inserting it inserts the whole batch.
	Instances []FlatInstance `json:"instances" yaml:"instances"`
	// StyleSources maps each freshly minted style source id to its declarations.
	StyleSources map[string]FlatStyle `json:"styleSources" yaml:"styleSources"`
	// StyleOrder lists the keys of StyleSources in pre-order.
	StyleOrder []string `json:"styleOrder" yaml:"styleOrder"`
	RootID     string   `json:"rootId" yaml:"rootId"`
}

// FlattenInstances converts spec into instances with fresh ids. It touches no registry:
// the caller creates the listed style sources and then inserts Instances[0].
func FlattenInstances(spec ComponentSpec, parentID string) FlattenResult {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		parentID = model.RootID
	}
	res := FlattenResult{StyleSources: map[string]FlatStyle{}}
	seen := map[string]bool{}
	root := build(spec, &res, seen)
	res.RootID = root.ID

	// Second pass records the flat view once every subtree is complete.
	var visit func(in model.Instance, parent string)
	visit = func(in model.Instance, parent string) {
		res.Instances = append(res.Instances, FlatInstance{ParentID: parent, Instance: in.Clone()})
		for _, ch := range in.Children {
			visit(ch, in.ID)
		}
	}
	visit(root, parentID)
	return res
}

func build(spec ComponentSpec, res *FlattenResult, seen map[string]bool) model.Instance {
	fresh := func(prefix string) string {
		id := ids.NewUnique(prefix, func(id string) bool { return seen[id] })
		seen[id] = true
		return id
	}
	typ := strings.TrimSpace(spec.Type)
	label := strings.TrimSpace(spec.Label)
	if label == "" {
		label = typ
	}
	inst := model.Instance{
		ID:    fresh(ids.PrefixInstance),
		Type:  typ,
		Label: label,
		Props: model.CloneProps(spec.Props),
	}
	if st, ok := flatStyle(spec, label); ok {
		sid := fresh(ids.PrefixStyle)
		res.StyleSources[sid] = st
		res.StyleOrder = append(res.StyleOrder, sid)
		inst.StyleSourceIDs = []string{sid}
	}
	for _, ch := range spec.Children {
		inst.Children = append(inst.Children, build(ch, res, seen))
	}
	return inst
}

func flatStyle(spec ComponentSpec, name string) (FlatStyle, bool) {
	st := FlatStyle{Name: name, Base: copyDecls(spec.Styles)}
	if spec.ResponsiveStyles != nil {
		st.Tablet = copyDecls(spec.ResponsiveStyles.Tablet)
		st.Mobile = copyDecls(spec.ResponsiveStyles.Mobile)
	}
	return st, st.Base != nil || st.Tablet != nil || st.Mobile != nil
}

func copyDecls(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ByBreakpoint returns the non-empty declaration sets of s keyed by breakpoint.
func (s FlatStyle) ByBreakpoint() map[model.Breakpoint]map[string]string {
	out := map[model.Breakpoint]map[string]string{}
	if len(s.Base) > 0 {
		out[model.BreakpointBase] = s.Base
	}
	if len(s.Tablet) > 0 {
		out[model.BreakpointTablet] = s.Tablet
	}
	if len(s.Mobile) > 0 {
		out[model.BreakpointMobile] = s.Mobile
	}
	return out
}
