package history

import "pagecraft/internal/model"

// DefaultCapacity bounds the number of snapshots kept.
const DefaultCapacity = 50

// Ring is a bounded linear undo/redo stack of whole-tree snapshots. The snapshot at the
// current index always mirrors the live tree.
type Ring struct {
	capacity  int
	snapshots []model.Instance
	index     int
}

func New(capacity int) *Ring {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity, index: -1}
}

func (r *Ring) Capacity() int { return r.capacity }
func (r *Ring) Len() int      { return len(r.snapshots) }
func (r *Ring) Index() int    { return r.index }

// Reset drops every snapshot and starts over from root.
func (r *Ring) Reset(root model.Instance) {
	r.snapshots = []model.Instance{root.Clone()}
	r.index = 0
}

// Push records root as the newest state, discarding any redo tail and evicting the
// oldest snapshot once capacity is exceeded.
func (r *Ring) Push(root model.Instance) {
	if r.index < len(r.snapshots)-1 {
		r.snapshots = r.snapshots[:r.index+1]
	}
	r.snapshots = append(r.snapshots, root.Clone())
	if over := len(r.snapshots) - r.capacity; over > 0 {
		r.snapshots = append([]model.Instance{}, r.snapshots[over:]...)
	}
	r.index = len(r.snapshots) - 1
}

func (r *Ring) CanUndo() bool { return r.index > 0 }
func (r *Ring) CanRedo() bool { return r.index >= 0 && r.index < len(r.snapshots)-1 }

// Undo steps back and returns a copy of the snapshot to install.
func (r *Ring) Undo() (model.Instance, bool) {
	if !r.CanUndo() {
		return model.Instance{}, false
	}
	r.index--
	return r.snapshots[r.index].Clone(), true
}

// Redo steps forward and returns a copy of the snapshot to install.
func (r *Ring) Redo() (model.Instance, bool) {
	if !r.CanRedo() {
		return model.Instance{}, false
	}
	r.index++
	return r.snapshots[r.index].Clone(), true
}

func (r *Ring) State() model.HistoryState {
	out := model.HistoryState{Capacity: r.capacity, Index: r.index}
	out.Snapshots = make([]model.Instance, len(r.snapshots))
	for i := range r.snapshots {
		out.Snapshots[i] = r.snapshots[i].Clone()
	}
	return out
}

// Restore loads a persisted state. Out-of-range indexes are clamped to the newest snapshot.
func (r *Ring) Restore(st model.HistoryState) {
	if st.Capacity >= 2 {
		r.capacity = st.Capacity
	}
	r.snapshots = make([]model.Instance, 0, len(st.Snapshots))
	for _, s := range st.Snapshots {
		r.snapshots = append(r.snapshots, s.Clone())
	}
	if over := len(r.snapshots) - r.capacity; over > 0 {
		r.snapshots = r.snapshots[over:]
		st.Index -= over
	}
	r.index = st.Index
	if r.index < 0 || r.index >= len(r.snapshots) {
		r.index = len(r.snapshots) - 1
	}
}
