package styles

import "pagecraft/internal/model"

// ComputedStyles flattens the declarations of the listed sources for (bp, state).
//
// Resolution order, each pass walking styleSourceIDs in list order so later sources win:
//  1. (base, default)
//  2. (bp, default) when bp is not base; tiers are independent, so mobile never sees tablet
//  3. (base, state) then (bp, state) when state is not default
//
// Properties missing from every applicable layer are absent from the result.
func (r *Registry) ComputedStyles(styleSourceIDs []string, bp model.Breakpoint, state model.State) map[string]string {
	if bp == "" {
		bp = model.BreakpointBase
	}
	if state == "" {
		state = model.StateDefault
	}

	out := map[string]string{}
	r.overlay(out, styleSourceIDs, model.BreakpointBase, model.StateDefault)
	if bp != model.BreakpointBase {
		r.overlay(out, styleSourceIDs, bp, model.StateDefault)
	}
	if state != model.StateDefault {
		r.overlay(out, styleSourceIDs, model.BreakpointBase, state)
		if bp != model.BreakpointBase {
			r.overlay(out, styleSourceIDs, bp, state)
		}
	}
	return out
}

func (r *Registry) overlay(out map[string]string, styleSourceIDs []string, bp model.Breakpoint, state model.State) {
	for _, id := range styleSourceIDs {
		src, ok := r.byID[id]
		if !ok {
			continue
		}
		for prop, val := range src.Declarations(bp, state) {
			out[prop] = val
		}
	}
}

// ScopedResolver resolves styles for live preview. Only the selected instance sees the
// state currently being edited; every other instance resolves the default state.
type ScopedResolver struct {
	Registry     *Registry
	SelectedID   string
	EditingState model.State
}

func (s ScopedResolver) Resolve(instanceID string, styleSourceIDs []string, bp model.Breakpoint) map[string]string {
	state := model.StateDefault
	if instanceID != "" && instanceID == s.SelectedID && s.EditingState != "" {
		state = s.EditingState
	}
	return s.Registry.ComputedStyles(styleSourceIDs, bp, state)
}
