package tree

import (
	"errors"
	"reflect"
	"testing"

	"pagecraft/internal/model"
)

func strPtr(s string) *string { return &s }

func box(id string, children ...model.Instance) model.Instance {
	return model.Instance{ID: id, Type: "Box", Label: id, Children: children}
}

func childIDs(in model.Instance) []string {
	out := []string{}
	for _, ch := range in.Children {
		out = append(out, ch.ID)
	}
	return out
}

func TestAddInstance_AppendsAndAssignsIDs(t *testing.T) {
	s := New(model.Instance{}, 0)

	id, ok, err := s.AddInstance(model.Instance{Type: "Heading", Label: "Title"}, "", -1)
	if err != nil || !ok {
		t.Fatalf("AddInstance: ok=%v err=%v", ok, err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	if _, ok, _ := s.AddInstance(box("inst-a"), model.RootID, 0); !ok {
		t.Fatalf("expected insert at index 0")
	}
	if got := childIDs(s.Root()); !reflect.DeepEqual(got, []string{"inst-a", id}) {
		t.Fatalf("unexpected children order: %v", got)
	}
	if !s.CanUndo() {
		t.Fatalf("expected history entries")
	}
}

func TestAddInstance_UnknownParentIsNoop(t *testing.T) {
	s := New(model.Instance{}, 0)
	before := s.History().Len()
	id, ok, err := s.AddInstance(box("inst-a"), "inst-missing", -1)
	if err != nil || ok || id != "" {
		t.Fatalf("expected silent no-op; got id=%q ok=%v err=%v", id, ok, err)
	}
	if s.History().Len() != before {
		t.Fatalf("expected no history entry for a no-op")
	}
}

func TestAddInstance_RejectsDuplicateIDs(t *testing.T) {
	s := New(model.Instance{}, 0)
	if _, _, err := s.AddInstance(box("inst-a"), "", -1); err != nil {
		t.Fatalf("AddInstance: %v", err)
	}
	if _, _, err := s.AddInstance(box("inst-b", box("inst-a")), "", -1); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if s.Contains("inst-b") {
		t.Fatalf("expected rejected subtree not to be inserted")
	}
}

func TestFindInstance_RepeatedReadsAreEqual(t *testing.T) {
	s := New(model.Instance{}, 0)
	_, _, _ = s.AddInstance(box("inst-a", box("inst-b")), "", -1)

	a1, ok1 := s.FindInstance("inst-b")
	a2, ok2 := s.FindInstance("inst-b")
	if !ok1 || !ok2 || !reflect.DeepEqual(a1, a2) {
		t.Fatalf("expected equal reads: %#v vs %#v", a1, a2)
	}
	a1.Label = "changed"
	if again, _ := s.FindInstance("inst-b"); again.Label != "inst-b" {
		t.Fatalf("expected reads to return copies")
	}
}

func TestUpdateInstance_ShallowMergeAndHooks(t *testing.T) {
	s := New(model.Instance{}, 0)
	_, _, _ = s.AddInstance(model.Instance{ID: "inst-a", Type: "Text", Label: "A", Props: map[string]any{"text": "hi", "tag": "p"}}, "", -1)

	var hooked []string
	s.OnUpdate(func(id string) {
		// The snapshot is already committed when hooks run.
		if cur, _ := s.FindInstance(id); cur.Label != "B" {
			t.Fatalf("expected hook to observe committed state")
		}
		hooked = append(hooked, id)
	})

	if !s.UpdateInstance("inst-a", Patch{Label: strPtr("B"), Props: map[string]any{"text": "bye"}}) {
		t.Fatalf("expected update to apply")
	}
	got, _ := s.FindInstance("inst-a")
	if got.Label != "B" || got.Type != "Text" {
		t.Fatalf("unexpected fields after update: %#v", got)
	}
	if !reflect.DeepEqual(got.Props, map[string]any{"text": "bye"}) {
		t.Fatalf("expected props to be replaced, got %#v", got.Props)
	}
	if !reflect.DeepEqual(hooked, []string{"inst-a"}) {
		t.Fatalf("expected one hook call, got %v", hooked)
	}
	if s.UpdateInstance("inst-missing", Patch{Label: strPtr("x")}) {
		t.Fatalf("expected unknown id to be a no-op")
	}
}

func TestDeleteInstance_CascadesAndClearsSelection(t *testing.T) {
	s := New(model.Instance{}, 0)
	_, _, _ = s.AddInstance(box("inst-a", box("inst-b", box("inst-c")), box("inst-d")), "", -1)
	_, _, _ = s.AddInstance(box("inst-e"), "", -1)
	if err := s.Select("inst-c"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	var removed []string
	s.OnDelete(func(ids []string) { removed = ids })

	before := s.Root().Count()
	ok, err := s.DeleteInstance("inst-a")
	if err != nil || !ok {
		t.Fatalf("DeleteInstance: ok=%v err=%v", ok, err)
	}
	if got := before - s.Root().Count(); got != 4 {
		t.Fatalf("expected 4 nodes removed (N+1), got %d", got)
	}
	for _, id := range []string{"inst-a", "inst-b", "inst-c", "inst-d"} {
		if _, ok := s.FindInstance(id); ok {
			t.Fatalf("expected %s to be gone", id)
		}
	}
	if len(removed) != 4 {
		t.Fatalf("expected delete hook to receive 4 ids, got %v", removed)
	}
	if s.SelectedID() != "" {
		t.Fatalf("expected selection to be cleared")
	}
}

func TestDeleteInstance_RootIsRejected(t *testing.T) {
	s := New(model.Instance{}, 0)
	if _, err := s.DeleteInstance(model.RootID); !errors.Is(err, ErrRootInstance) {
		t.Fatalf("expected ErrRootInstance, got %v", err)
	}
	if ok, err := s.DeleteInstance("inst-missing"); ok || err != nil {
		t.Fatalf("expected silent no-op for unknown id; ok=%v err=%v", ok, err)
	}
}

func TestMoveInstance(t *testing.T) {
	s := New(model.Instance{}, 0)
	_, _, _ = s.AddInstance(box("inst-a", box("inst-b")), "", -1)
	_, _, _ = s.AddInstance(box("inst-c"), "", -1)
	_, _, _ = s.AddInstance(box("inst-d"), "", -1)

	ok, err := s.MoveInstance("inst-a", "inst-c", 0)
	if err != nil || !ok {
		t.Fatalf("MoveInstance: ok=%v err=%v", ok, err)
	}
	c, _ := s.FindInstance("inst-c")
	if !reflect.DeepEqual(childIDs(c), []string{"inst-a"}) {
		t.Fatalf("expected inst-a under inst-c, got %v", childIDs(c))
	}
	if p, _, _ := s.ParentOf("inst-b"); p != "inst-a" {
		t.Fatalf("expected subtree to move along, parent of inst-b = %q", p)
	}

	// Reorder within the same parent: index counts siblings after detachment.
	ok, err = s.MoveInstance("inst-c", model.RootID, 1)
	if err != nil || !ok {
		t.Fatalf("reorder: ok=%v err=%v", ok, err)
	}
	if got := childIDs(s.Root()); !reflect.DeepEqual(got, []string{"inst-d", "inst-c"}) {
		t.Fatalf("unexpected root order %v", got)
	}
	if ok, _ := s.MoveInstance("inst-c", model.RootID, 1); ok {
		t.Fatalf("expected moving to the same slot to be a no-op")
	}
}

func TestMoveInstance_Guards(t *testing.T) {
	s := New(model.Instance{}, 0)
	_, _, _ = s.AddInstance(box("inst-a", box("inst-b", box("inst-c"))), "", -1)
	before := s.Root()

	if _, err := s.MoveInstance("inst-a", "inst-c", 0); !errors.Is(err, ErrMoveIntoSelf) {
		t.Fatalf("expected ErrMoveIntoSelf, got %v", err)
	}
	if _, err := s.MoveInstance("inst-a", "inst-a", 0); !errors.Is(err, ErrMoveIntoSelf) {
		t.Fatalf("expected ErrMoveIntoSelf for self, got %v", err)
	}
	if _, err := s.MoveInstance(model.RootID, "inst-a", 0); !errors.Is(err, ErrRootInstance) {
		t.Fatalf("expected ErrRootInstance, got %v", err)
	}
	if ok, err := s.MoveInstance("inst-missing", "inst-a", 0); ok || err != nil {
		t.Fatalf("expected silent no-op; ok=%v err=%v", ok, err)
	}
	if ok, err := s.MoveInstance("inst-c", "inst-missing", 0); ok || err != nil {
		t.Fatalf("expected silent no-op; ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(s.Root(), before) {
		t.Fatalf("expected tree to be untouched by rejected moves")
	}
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	s := New(model.Instance{}, 0)
	start := s.Root()

	_, _, _ = s.AddInstance(box("inst-a"), "", -1)
	_, _, _ = s.AddInstance(box("inst-b"), "inst-a", -1)
	s.UpdateInstance("inst-b", Patch{Label: strPtr("renamed")})
	_, _ = s.MoveInstance("inst-b", model.RootID, 0)
	_, _ = s.DeleteInstance("inst-a")
	end := s.Root()

	for i := 0; i < 5; i++ {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	if !reflect.DeepEqual(s.Root(), start) {
		t.Fatalf("expected undo to restore the initial tree; got %#v", s.Root())
	}
	for i := 0; i < 5; i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
	}
	if !reflect.DeepEqual(s.Root(), end) {
		t.Fatalf("expected redo to restore the final tree; got %#v", s.Root())
	}
}

func TestUndo_DropsDanglingSelection(t *testing.T) {
	s := New(model.Instance{}, 0)
	_, _, _ = s.AddInstance(box("inst-a"), "", -1)
	_ = s.Select("inst-a")
	s.Undo()
	if s.SelectedID() != "" {
		t.Fatalf("expected selection of a node that no longer exists to be cleared")
	}
}

func TestRestore_RejectsBadRoots(t *testing.T) {
	s := New(model.Instance{}, 0)
	if err := s.Restore(box("inst-a"), nil, "", ""); err == nil {
		t.Fatalf("expected error for non-root id")
	}
	root := model.NewRoot()
	root.Children = []model.Instance{box("inst-a"), box("inst-a")}
	if err := s.Restore(root, nil, "", ""); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}
