package clipboard

import (
	"pagecraft/internal/duplicate"
	"pagecraft/internal/model"
)

// Board holds at most one copied subtree. The entry is a deep copy taken at copy time, so
// later edits to the original never leak into a paste. The link records of the copied
// nodes are captured too: a cut deletes the original and its links, and the paste must
// still come out linked.
type Board struct {
	entry *model.Instance
	links map[string]model.InstanceLink
}

// Copy stores inst. links are the link records of nodes inside inst; others are ignored.
func (b *Board) Copy(inst model.Instance, links ...model.InstanceLink) {
	cp := inst.Clone()
	b.entry = &cp
	b.links = map[string]model.InstanceLink{}
	inside := map[string]bool{}
	for _, id := range cp.IDs() {
		inside[id] = true
	}
	for _, l := range links {
		if inside[l.InstanceID] {
			b.links[l.InstanceID] = l.Clone()
		}
	}
}

func (b *Board) Entry() (model.Instance, bool) {
	if b.entry == nil {
		return model.Instance{}, false
	}
	return b.entry.Clone(), true
}

// Links returns the captured link records ordered as the entry's pre-order walk.
func (b *Board) Links() []model.InstanceLink {
	if b.entry == nil {
		return nil
	}
	out := []model.InstanceLink{}
	for _, id := range b.entry.IDs() {
		if l, ok := b.links[id]; ok {
			out = append(out, l.Clone())
		}
	}
	return out
}

func (b *Board) Empty() bool { return b.entry == nil }

func (b *Board) Clear() {
	b.entry = nil
	b.links = nil
}

// Paste clones the entry again through the duplication engine. ok is false when the
// board is empty. The caller inserts the result and then applies its links.
func (b *Board) Paste(l duplicate.Linker) (duplicate.Result, bool, error) {
	if b.entry == nil {
		return duplicate.Result{}, false, nil
	}
	res, err := duplicate.DuplicateInstanceWithLinkage(*b.entry, capturedLinker{Linker: l, links: b.links})
	if err != nil {
		return duplicate.Result{}, false, err
	}
	return res, true, nil
}

// Restore loads a persisted entry; nil clears the board.
func (b *Board) Restore(entry *model.Instance, links []model.InstanceLink) {
	if entry == nil {
		b.Clear()
		return
	}
	b.Copy(*entry, links...)
}

// capturedLinker answers link lookups from the captured records first.
type capturedLinker struct {
	duplicate.Linker
	links map[string]model.InstanceLink
}

func (c capturedLinker) GetInstanceLink(id string) (model.InstanceLink, bool) {
	if l, ok := c.links[id]; ok {
		return l.Clone(), true
	}
	return c.Linker.GetInstanceLink(id)
}

var _ duplicate.Linker = capturedLinker{}
