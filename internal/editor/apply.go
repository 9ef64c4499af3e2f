package editor

import (
	"errors"
	"fmt"

	"pagecraft/internal/aispec"
	"pagecraft/internal/model"
	"pagecraft/internal/styles"
	"pagecraft/internal/tree"
)

// ApplyResult reports what an assistant response changed.
type ApplyResult struct {
	Action    aispec.Action     `json:"action" yaml:"action"`
	Message   string            `json:"message,omitempty" yaml:"message,omitempty"`
	Created   []string          `json:"created,omitempty" yaml:"created,omitempty"`
	Updated   []string          `json:"updated,omitempty" yaml:"updated,omitempty"`
	Deleted   []string          `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	ImageSpec *aispec.ImageSpec `json:"imageSpec,omitempty" yaml:"imageSpec,omitempty"`
}

// ApplyResponse issues the tree and style calls for a parsed response. Every target and
// every declaration map is checked before the first mutation so a response never lands
// half-applied because of a stale id or a bad property. generate-image is handed back untouched; image generation happens elsewhere.
func (e *Editor) ApplyResponse(resp *aispec.Response, parentID string) (ApplyResult, error) {
	if resp == nil {
		return ApplyResult{}, errors.New("nil response")
	}
	res := ApplyResult{Action: resp.Action, Message: resp.Message}
	switch resp.Action {
	case aispec.ActionCreate:
		ids, err := e.applyCreate(resp.Components, parentID)
		res.Created = ids
		return res, err
	case aispec.ActionUpdate:
		ids, err := e.applyUpdates(resp.Updates)
		res.Updated = ids
		return res, err
	case aispec.ActionDelete:
		sel := e.tree.SelectedID()
		if sel == "" {
			return res, ErrNoSelection
		}
		ok, err := e.DeleteInstance(sel)
		if err != nil {
			return res, err
		}
		if ok {
			res.Deleted = []string{sel}
		}
		return res, nil
	case aispec.ActionGenerateImage:
		res.ImageSpec = resp.ImageSpec
		return res, nil
	default:
		return res, fmt.Errorf("%w: unknown action %q", aispec.ErrMalformed, resp.Action)
	}
}

func (e *Editor) applyCreate(components []aispec.ComponentSpec, parentID string) ([]string, error) {
	parentID = normalizeParent(parentID)
	if !e.tree.Contains(parentID) {
		return nil, tree.NotFoundError{Kind: "instance", ID: parentID}
	}
	if err := e.checkContainer(parentID); err != nil {
		return nil, err
	}
	for i, c := range components {
		if err := checkComponentStyles(c); err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
	}

	created := []string{}
	for _, c := range components {
		flat := aispec.FlattenInstances(c, parentID)
		for _, sid := range flat.StyleOrder {
			st := flat.StyleSources[sid]
			if err := e.styles.CreateStyleSourceWithID(sid, model.StyleKindLocal, st.Name); err != nil {
				return created, err
			}
			for bp, decls := range st.ByBreakpoint() {
				if err := e.styles.SetDeclarations(sid, decls, bp, model.StateDefault); err != nil {
					return created, err
				}
			}
		}
		id, ok, err := e.AddInstance(flat.Instances[0].Instance, parentID, -1)
		if err != nil {
			return created, err
		}
		if !ok {
			return created, tree.NotFoundError{Kind: "instance", ID: parentID}
		}
		created = append(created, id)
	}
	e.log.Info("assistant components created", "count", len(created), "parent", parentID)
	return created, nil
}

func (e *Editor) applyUpdates(updates []aispec.Update) ([]string, error) {
	for i, u := range updates {
		if !e.tree.Contains(u.TargetID) {
			return nil, tree.NotFoundError{Kind: "instance", ID: u.TargetID}
		}
		for _, d := range breakpointDecls(u.Styles, u.ResponsiveStyles) {
			if err := styles.CheckDeclarations(d); err != nil {
				return nil, fmt.Errorf("updates[%d]: %w", i, err)
			}
		}
	}
	updated := []string{}
	for _, u := range updates {
		if len(u.Props) > 0 {
			e.MergeProps(u.TargetID, u.Props)
		}
		decls := breakpointDecls(u.Styles, u.ResponsiveStyles)
		if len(decls) > 0 {
			sid, err := e.ensureLocalSource(u.TargetID)
			if err != nil {
				return updated, err
			}
			for bp, d := range decls {
				if err := e.styles.SetDeclarations(sid, d, bp, model.StateDefault); err != nil {
					return updated, err
				}
			}
			e.syncSource(sid)
		}
		updated = append(updated, u.TargetID)
	}
	return updated, nil
}

// breakpointDecls groups the non-empty declaration maps of a response entry by breakpoint.
func breakpointDecls(base map[string]string, rs *aispec.ResponsiveStyles) map[model.Breakpoint]map[string]string {
	decls := map[model.Breakpoint]map[string]string{}
	if len(base) > 0 {
		decls[model.BreakpointBase] = base
	}
	if rs != nil {
		if len(rs.Tablet) > 0 {
			decls[model.BreakpointTablet] = rs.Tablet
		}
		if len(rs.Mobile) > 0 {
			decls[model.BreakpointMobile] = rs.Mobile
		}
	}
	return decls
}

func checkComponentStyles(c aispec.ComponentSpec) error {
	for _, d := range breakpointDecls(c.Styles, c.ResponsiveStyles) {
		if err := styles.CheckDeclarations(d); err != nil {
			return err
		}
	}
	for _, ch := range c.Children {
		if err := checkComponentStyles(ch); err != nil {
			return err
		}
	}
	return nil
}
