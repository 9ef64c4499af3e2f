package tree

import (
	"fmt"
	"strings"

	"pagecraft/internal/history"
	"pagecraft/internal/ids"
	"pagecraft/internal/model"
)

// Store owns the instance tree. Every successful mutation leaves the tree consistent and
// records a snapshot; reads hand out copies so callers cannot splice the tree directly.
type Store struct {
	root       model.Instance
	selectedID string
	isolatedID string
	history    *history.Ring

	afterUpdate []func(id string)
	afterDelete []func(ids []string)
}

// Patch is a shallow update. Nil fields are left unchanged; Props and StyleSourceIDs
// replace the whole value when set.
type Patch struct {
	Type           *string
	Label          *string
	Props          map[string]any
	StyleSourceIDs []string
}

func (p Patch) empty() bool {
	return p.Type == nil && p.Label == nil && p.Props == nil && p.StyleSourceIDs == nil
}

// New returns a store holding root (a fresh root when root.ID is empty).
func New(root model.Instance, historyCapacity int) *Store {
	if root.ID == "" {
		root = model.NewRoot()
	}
	s := &Store{root: root.Clone(), history: history.New(historyCapacity)}
	s.history.Reset(s.root)
	return s
}

// OnUpdate registers fn to run after an UpdateInstance has been committed.
func (s *Store) OnUpdate(fn func(id string)) {
	s.afterUpdate = append(s.afterUpdate, fn)
}

// OnDelete registers fn to run with every id removed by DeleteInstance.
func (s *Store) OnDelete(fn func(ids []string)) {
	s.afterDelete = append(s.afterDelete, fn)
}

func (s *Store) Root() model.Instance { return s.root.Clone() }

func (s *Store) History() *history.Ring { return s.history }

func (s *Store) find(id string) *model.Instance {
	var found *model.Instance
	s.root.Walk(func(x *model.Instance) bool {
		if x.ID == id {
			found = x
			return false
		}
		return true
	})
	return found
}

// findParent returns the parent of id and the child index.
func (s *Store) findParent(id string) (*model.Instance, int) {
	var parent *model.Instance
	idx := -1
	s.root.Walk(func(x *model.Instance) bool {
		for i := range x.Children {
			if x.Children[i].ID == id {
				parent = x
				idx = i
				return false
			}
		}
		return true
	})
	return parent, idx
}

func (s *Store) Contains(id string) bool {
	return s.find(strings.TrimSpace(id)) != nil
}

// FindInstance returns a copy of the instance with the given id.
func (s *Store) FindInstance(id string) (model.Instance, bool) {
	x := s.find(strings.TrimSpace(id))
	if x == nil {
		return model.Instance{}, false
	}
	return x.Clone(), true
}

// ParentOf returns the id of the parent of id and the child index.
func (s *Store) ParentOf(id string) (string, int, bool) {
	p, idx := s.findParent(strings.TrimSpace(id))
	if p == nil {
		return "", -1, false
	}
	return p.ID, idx, true
}

// Ancestors returns the ids from the parent of id up to the root.
func (s *Store) Ancestors(id string) []string {
	out := []string{}
	cur := strings.TrimSpace(id)
	for {
		p, _ := s.findParent(cur)
		if p == nil {
			return out
		}
		out = append(out, p.ID)
		cur = p.ID
	}
}

// IsDescendant reports whether id lies in the subtree rooted at ancestorID (inclusive).
func (s *Store) IsDescendant(id, ancestorID string) bool {
	anc := s.find(ancestorID)
	if anc == nil {
		return false
	}
	found := false
	anc.Walk(func(x *model.Instance) bool {
		if x.ID == id {
			found = true
			return false
		}
		return true
	})
	return found
}

func (s *Store) SelectedID() string { return s.selectedID }
func (s *Store) IsolatedID() string { return s.isolatedID }

// SelectedInstance returns a copy of the selected instance.
func (s *Store) SelectedInstance() (model.Instance, bool) {
	if s.selectedID == "" {
		return model.Instance{}, false
	}
	return s.FindInstance(s.selectedID)
}

// Select sets the selection. An empty id clears it.
func (s *Store) Select(id string) error {
	id = strings.TrimSpace(id)
	if id != "" && s.find(id) == nil {
		return NotFoundError{Kind: "instance", ID: id}
	}
	s.selectedID = id
	return nil
}

// Isolate scopes editing to one subtree. An empty id clears it.
func (s *Store) Isolate(id string) error {
	id = strings.TrimSpace(id)
	if id != "" && s.find(id) == nil {
		return NotFoundError{Kind: "instance", ID: id}
	}
	s.isolatedID = id
	return nil
}

// AddInstance inserts inst under parentID ("" means root) at index (negative or past the
// end appends). Nodes without ids get fresh ones. It returns the id of the inserted
// subtree root; ok is false when the parent does not resolve.
func (s *Store) AddInstance(inst model.Instance, parentID string, index int) (string, bool, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		parentID = model.RootID
	}
	if s.find(parentID) == nil {
		return "", false, nil
	}

	inst = inst.Clone()
	existing := map[string]bool{}
	s.root.Walk(func(x *model.Instance) bool {
		existing[x.ID] = true
		return true
	})
	var dupErr error
	inst.Walk(func(x *model.Instance) bool {
		x.ID = strings.TrimSpace(x.ID)
		if x.ID == "" {
			x.ID = ids.NewUnique(ids.PrefixInstance, func(id string) bool { return existing[id] })
		} else if existing[x.ID] || x.ID == model.RootID {
			dupErr = fmt.Errorf("%w: %s", ErrDuplicateID, x.ID)
			return false
		}
		existing[x.ID] = true
		return true
	})
	if dupErr != nil {
		return "", false, dupErr
	}

	parent := s.find(parentID)
	parent.Children = insertAt(parent.Children, inst, index)
	s.commit()
	return inst.ID, true, nil
}

// UpdateInstance applies patch to id. It reports false when id is unknown or the patch
// is empty. Update hooks run after the snapshot is recorded.
func (s *Store) UpdateInstance(id string, patch Patch) bool {
	id = strings.TrimSpace(id)
	x := s.find(id)
	if x == nil || patch.empty() {
		return false
	}
	if patch.Type != nil {
		x.Type = *patch.Type
	}
	if patch.Label != nil {
		x.Label = *patch.Label
	}
	// Empty values are stored as nil so the persisted form round-trips.
	if patch.Props != nil {
		x.Props = nil
		if len(patch.Props) > 0 {
			x.Props = model.CloneProps(patch.Props)
		}
	}
	if patch.StyleSourceIDs != nil {
		x.StyleSourceIDs = nil
		if len(patch.StyleSourceIDs) > 0 {
			x.StyleSourceIDs = append([]string{}, patch.StyleSourceIDs...)
		}
	}
	s.commit()
	for _, fn := range s.afterUpdate {
		fn(id)
	}
	return true
}

// DeleteInstance removes id and its whole subtree.
func (s *Store) DeleteInstance(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == model.RootID {
		return false, ErrRootInstance
	}
	parent, idx := s.findParent(id)
	if parent == nil {
		return false, nil
	}
	removed := parent.Children[idx].IDs()
	parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
	if len(parent.Children) == 0 {
		parent.Children = nil
	}

	gone := map[string]bool{}
	for _, r := range removed {
		gone[r] = true
	}
	if gone[s.selectedID] {
		s.selectedID = ""
	}
	if gone[s.isolatedID] {
		s.isolatedID = ""
	}
	s.commit()
	for _, fn := range s.afterDelete {
		fn(removed)
	}
	return true, nil
}

// MoveInstance detaches id and reinserts it under newParentID at index, where index
// counts the new parent's children after the detachment.
func (s *Store) MoveInstance(id, newParentID string, index int) (bool, error) {
	id = strings.TrimSpace(id)
	newParentID = strings.TrimSpace(newParentID)
	if newParentID == "" {
		newParentID = model.RootID
	}
	if id == model.RootID {
		return false, ErrRootInstance
	}
	oldParent, oldIdx := s.findParent(id)
	if oldParent == nil || s.find(newParentID) == nil {
		return false, nil
	}
	if s.IsDescendant(newParentID, id) {
		return false, fmt.Errorf("%w: %s into %s", ErrMoveIntoSelf, id, newParentID)
	}

	if oldParent.ID == newParentID {
		n := len(oldParent.Children) - 1
		if index < 0 || index > n {
			index = n
		}
		if index == oldIdx {
			return false, nil
		}
	}

	node := oldParent.Children[oldIdx]
	oldParent.Children = append(oldParent.Children[:oldIdx], oldParent.Children[oldIdx+1:]...)
	if len(oldParent.Children) == 0 {
		oldParent.Children = nil
	}
	// Removing a child may shift the target's address.
	parent := s.find(newParentID)
	parent.Children = insertAt(parent.Children, node, index)
	s.commit()
	return true, nil
}

func insertAt(children []model.Instance, inst model.Instance, index int) []model.Instance {
	if index < 0 || index >= len(children) {
		return append(children, inst)
	}
	children = append(children, model.Instance{})
	copy(children[index+1:], children[index:])
	children[index] = inst
	return children
}

func (s *Store) commit() {
	s.history.Push(s.root)
}

func (s *Store) CanUndo() bool { return s.history.CanUndo() }
func (s *Store) CanRedo() bool { return s.history.CanRedo() }

// Undo replaces the live tree with the previous snapshot. No hooks run.
func (s *Store) Undo() bool {
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.install(snap)
	return true
}

// Redo replaces the live tree with the next snapshot. No hooks run.
func (s *Store) Redo() bool {
	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.install(snap)
	return true
}

func (s *Store) install(root model.Instance) {
	s.root = root
	if s.selectedID != "" && s.find(s.selectedID) == nil {
		s.selectedID = ""
	}
	if s.isolatedID != "" && s.find(s.isolatedID) == nil {
		s.isolatedID = ""
	}
}

// Restore loads persisted state without recording a snapshot. A nil history starts a
// fresh one at root.
func (s *Store) Restore(root model.Instance, hist *model.HistoryState, selectedID, isolatedID string) error {
	if root.ID != model.RootID {
		return fmt.Errorf("restore: expected root id %q, got %q", model.RootID, root.ID)
	}
	seen := map[string]bool{}
	var dup string
	root.Walk(func(x *model.Instance) bool {
		if seen[x.ID] {
			dup = x.ID
			return false
		}
		seen[x.ID] = true
		return true
	})
	if dup != "" {
		return fmt.Errorf("restore: %w: %s", ErrDuplicateID, dup)
	}
	s.root = root.Clone()
	if hist != nil && len(hist.Snapshots) > 0 {
		s.history.Restore(*hist)
	} else {
		s.history.Reset(s.root)
	}
	s.selectedID = ""
	s.isolatedID = ""
	if seen[selectedID] {
		s.selectedID = selectedID
	}
	if seen[isolatedID] {
		s.isolatedID = isolatedID
	}
	return nil
}
