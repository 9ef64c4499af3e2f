package editor

import (
	"fmt"
	"strings"

	"pagecraft/internal/model"
	"pagecraft/internal/styles"
	"pagecraft/internal/tree"
)

func (e *Editor) CreateStyleSource(kind model.StyleKind, name string) string {
	return e.styles.CreateStyleSource(kind, name)
}

func (e *Editor) StyleSources() []model.StyleSource { return e.styles.Sources() }

func (e *Editor) StyleSource(id string) (model.StyleSource, bool) {
	return e.styles.Get(strings.TrimSpace(id))
}

// SetStyle upserts one declaration and re-syncs every master whose subtree uses the
// source.
func (e *Editor) SetStyle(sourceID, property, value string, bp model.Breakpoint, state model.State) error {
	if err := e.styles.SetStyle(sourceID, property, value, bp, state); err != nil {
		return err
	}
	e.syncSource(sourceID)
	return nil
}

func (e *Editor) RenameStyleSource(id, name string) error {
	if err := e.styles.Rename(id, name); err != nil {
		return err
	}
	e.syncSource(id)
	return nil
}

func (e *Editor) RemoveStyle(sourceID, property string, bp model.Breakpoint, state model.State) bool {
	if !e.styles.RemoveStyle(sourceID, property, bp, state) {
		return false
	}
	e.syncSource(sourceID)
	return true
}

// DeleteStyleSource drops a source. Instances that still list its id resolve as if the
// source were absent.
func (e *Editor) DeleteStyleSource(id string) bool {
	masters := e.links.MastersUsingSource(id, e.tree)
	if !e.styles.DeleteStyleSource(id) {
		return false
	}
	for _, m := range masters {
		e.syncFrom(m)
	}
	return true
}

func (e *Editor) syncSource(sourceID string) {
	for _, m := range e.links.MastersUsingSource(sourceID, e.tree) {
		e.syncFrom(m)
	}
}

// AttachStyleSource appends sourceID to the instance's list (a no-op when already there).
func (e *Editor) AttachStyleSource(instanceID, sourceID string) (bool, error) {
	inst, ok := e.tree.FindInstance(instanceID)
	if !ok {
		return false, tree.NotFoundError{Kind: "instance", ID: instanceID}
	}
	if !e.styles.Has(sourceID) {
		return false, styles.NotFoundError{ID: sourceID}
	}
	for _, sid := range inst.StyleSourceIDs {
		if sid == sourceID {
			return false, nil
		}
	}
	next := append(append([]string{}, inst.StyleSourceIDs...), sourceID)
	return e.UpdateInstance(inst.ID, tree.Patch{StyleSourceIDs: next}), nil
}

// DetachStyleSource removes sourceID from the instance's list.
func (e *Editor) DetachStyleSource(instanceID, sourceID string) (bool, error) {
	inst, ok := e.tree.FindInstance(instanceID)
	if !ok {
		return false, tree.NotFoundError{Kind: "instance", ID: instanceID}
	}
	next := []string{}
	for _, sid := range inst.StyleSourceIDs {
		if sid != sourceID {
			next = append(next, sid)
		}
	}
	if len(next) == len(inst.StyleSourceIDs) {
		return false, nil
	}
	return e.UpdateInstance(inst.ID, tree.Patch{StyleSourceIDs: next}), nil
}

// ComputedStyles resolves the instance's style sources for (bp, state) on top of the
// default styles of its catalog entry.
func (e *Editor) ComputedStyles(instanceID string, bp model.Breakpoint, state model.State) (map[string]string, error) {
	inst, ok := e.tree.FindInstance(instanceID)
	if !ok {
		return nil, tree.NotFoundError{Kind: "instance", ID: instanceID}
	}
	return e.withDefaults(inst, e.styles.ComputedStyles(inst.StyleSourceIDs, bp, state)), nil
}

// PreviewStyles resolves what the canvas shows for the instance: only the selected
// instance sees the current editing state.
func (e *Editor) PreviewStyles(instanceID string, bp model.Breakpoint) (map[string]string, error) {
	inst, ok := e.tree.FindInstance(instanceID)
	if !ok {
		return nil, tree.NotFoundError{Kind: "instance", ID: instanceID}
	}
	r := styles.ScopedResolver{
		Registry:     e.styles,
		SelectedID:   e.tree.SelectedID(),
		EditingState: e.editingState,
	}
	return e.withDefaults(inst, r.Resolve(inst.ID, inst.StyleSourceIDs, bp)), nil
}

func (e *Editor) withDefaults(inst model.Instance, computed map[string]string) map[string]string {
	out := e.cat.DefaultStyles(inst.Type)
	for k, v := range computed {
		out[k] = v
	}
	return out
}

// ensureLocalSource returns the instance's first local source, creating and attaching
// one when it has none.
func (e *Editor) ensureLocalSource(instanceID string) (string, error) {
	inst, ok := e.tree.FindInstance(instanceID)
	if !ok {
		return "", tree.NotFoundError{Kind: "instance", ID: instanceID}
	}
	for _, sid := range inst.StyleSourceIDs {
		if src, ok := e.styles.Get(sid); ok && src.Kind == model.StyleKindLocal {
			return sid, nil
		}
	}
	name := inst.Label
	if name == "" {
		name = inst.Type
	}
	sid := e.styles.CreateStyleSource(model.StyleKindLocal, name)
	if _, err := e.AttachStyleSource(inst.ID, sid); err != nil {
		e.styles.DeleteStyleSource(sid)
		return "", fmt.Errorf("attach style source: %w", err)
	}
	return sid, nil
}
