package linkage

import (
	"errors"
	"reflect"
	"testing"

	"pagecraft/internal/model"
	"pagecraft/internal/styles"
	"pagecraft/internal/tree"
)

type fixture struct {
	styles *styles.Registry
	tree   *tree.Store
	links  *Registry
	local  string
	global string
}

// newFixture builds a tree holding one card (inst-card > inst-title) styled with a local
// class and a global token, saved as a prebuilt whose master is inst-card.
func newFixture(t *testing.T) (*fixture, model.Prebuilt) {
	t.Helper()
	st := styles.NewRegistry()
	local := st.CreateStyleSource(model.StyleKindLocal, "card")
	global := st.CreateStyleSource(model.StyleKindGlobal, "brand")
	mustSet(t, st, local, "padding", "16px", model.BreakpointBase)
	mustSet(t, st, local, "padding", "8px", model.BreakpointMobile)
	mustSet(t, st, global, "color", "purple", model.BreakpointBase)

	tr := tree.New(model.Instance{}, 0)
	card := model.Instance{
		ID:             "inst-card",
		Type:           "Box",
		Label:          "Card",
		StyleSourceIDs: []string{local, global},
		Children: []model.Instance{
			{ID: "inst-title", Type: "Heading", Label: "Title", Props: map[string]any{"text": "Hello"}, StyleSourceIDs: []string{global}},
		},
	}
	if _, ok, err := tr.AddInstance(card, "", -1); err != nil || !ok {
		t.Fatalf("AddInstance: ok=%v err=%v", ok, err)
	}

	reg := NewRegistry(st)
	reg.SetMembership(tr.Contains)
	inst, _ := tr.FindInstance("inst-card")
	p, err := reg.SavePrebuilt("Card", "layout", inst)
	if err != nil {
		t.Fatalf("SavePrebuilt: %v", err)
	}
	if err := reg.LinkInstance("inst-card", p.ID, nil, true); err != nil {
		t.Fatalf("LinkInstance: %v", err)
	}

	return &fixture{styles: st, tree: tr, links: reg, local: local, global: global}, p
}

func mustSet(t *testing.T, st *styles.Registry, id, prop, val string, bp model.Breakpoint) {
	t.Helper()
	if err := st.SetStyle(id, prop, val, bp, model.StateDefault); err != nil {
		t.Fatalf("SetStyle(%s, %s): %v", id, prop, err)
	}
}

func (f *fixture) add(t *testing.T, inst model.Instance) string {
	t.Helper()
	id, ok, err := f.tree.AddInstance(inst, "", -1)
	if err != nil || !ok {
		t.Fatalf("AddInstance: ok=%v err=%v", ok, err)
	}
	return id
}

func (f *fixture) computed(id, prop string, bp model.Breakpoint) string {
	return f.styles.ComputedStyles([]string{id}, bp, model.StateDefault)[prop]
}

func TestCreateLinkedInstance_ForksLocalAndReusesGlobal(t *testing.T) {
	f, p := newFixture(t)

	li, err := f.links.CreateLinkedInstance(p.ID)
	if err != nil {
		t.Fatalf("CreateLinkedInstance: %v", err)
	}

	if li.Instance.ID == "inst-card" {
		t.Fatalf("expected a fresh root id")
	}
	if len(li.Instance.Children) != 1 || li.Instance.Children[0].ID == "inst-title" {
		t.Fatalf("expected one child with a fresh id, got %#v", li.Instance.Children)
	}
	if got := li.Instance.Children[0].Props["text"]; got != "Hello" {
		t.Fatalf("expected child props to be copied, got %v", got)
	}

	forked, ok := li.StyleIDMapping[f.local]
	if !ok || forked == f.local {
		t.Fatalf("expected the local source to be forked, mapping %v", li.StyleIDMapping)
	}
	if _, remapped := li.StyleIDMapping[f.global]; remapped {
		t.Fatalf("expected the global source to be reused in place")
	}
	if want := []string{forked, f.global}; !reflect.DeepEqual(li.Instance.StyleSourceIDs, want) {
		t.Fatalf("expected style ids %v, got %v", want, li.Instance.StyleSourceIDs)
	}
	if want := []string{forked}; !reflect.DeepEqual(li.CreatedSources, want) {
		t.Fatalf("expected created sources %v, got %v", want, li.CreatedSources)
	}

	src, ok := f.styles.Get(forked)
	if !ok || src.Name != "card" || src.Kind != model.StyleKindLocal {
		t.Fatalf("unexpected forked source ok=%v %#v", ok, src)
	}
	if got := f.computed(forked, "padding", model.BreakpointMobile); got != "8px" {
		t.Fatalf("expected mobile padding 8px, got %q", got)
	}

	// Not inserted, not linked.
	if f.tree.Contains(li.Instance.ID) || f.links.IsLinkedInstance(li.Instance.ID) {
		t.Fatalf("expected the clone to be neither inserted nor linked")
	}
}

func TestCreateLinkedInstance_UnknownMaster(t *testing.T) {
	f, _ := newFixture(t)
	_, err := f.links.CreateLinkedInstance("pre-missing")
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "prebuilt" {
		t.Fatalf("expected prebuilt NotFoundError, got %v", err)
	}
}

func TestCreateLinkedInstance_RecreatesDeletedGlobal(t *testing.T) {
	f, p := newFixture(t)
	if !f.styles.DeleteStyleSource(f.global) {
		t.Fatalf("expected the global source to be deleted")
	}

	li, err := f.links.CreateLinkedInstance(p.ID)
	if err != nil {
		t.Fatalf("CreateLinkedInstance: %v", err)
	}
	to, ok := li.StyleIDMapping[f.global]
	if !ok {
		t.Fatalf("expected the global source to be recreated, mapping %v", li.StyleIDMapping)
	}
	if got := f.computed(to, "color", model.BreakpointBase); got != "purple" {
		t.Fatalf("expected color purple, got %q", got)
	}
}

func TestCreateLinkedInstance_FailureDiscardsForkedSources(t *testing.T) {
	f, _ := newFixture(t)
	bad := model.StyleSource{
		ID:   "src-bad",
		Kind: model.StyleKindLocal,
		Name: "bad",
		Values: map[model.Breakpoint]map[model.State]model.Declarations{
			model.BreakpointBase: {model.StateDefault: {"": "x"}},
		},
	}
	good := model.StyleSource{ID: "src-good", Kind: model.StyleKindLocal, Name: "good"}
	p := model.Prebuilt{
		ID:           "pre-bad",
		Name:         "Bad",
		Root:         model.Instance{ID: "inst-tpl", Type: "Box", StyleSourceIDs: []string{"src-good", "src-bad"}},
		StyleSources: []model.StyleSource{good, bad},
	}
	if err := f.links.Restore(append(f.links.Prebuilts(), p), f.links.Records()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	before := f.styles.Len()
	if _, err := f.links.CreateLinkedInstance(p.ID); err == nil {
		t.Fatalf("expected the empty property to fail the fork")
	}
	if got := f.styles.Len(); got != before {
		t.Fatalf("expected no stray style sources, had %d now %d", before, got)
	}
}

func TestLinkInstance_Guards(t *testing.T) {
	f, p := newFixture(t)
	if err := f.links.LinkInstance(model.RootID, p.ID, nil, false); !errors.Is(err, ErrRootLink) {
		t.Fatalf("expected ErrRootLink, got %v", err)
	}

	var nf NotFoundError
	if err := f.links.LinkInstance("inst-title", "pre-missing", nil, false); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestLinkInstance_SingleMasterPerPrebuilt(t *testing.T) {
	f, p := newFixture(t)
	f.add(t, model.Instance{ID: "inst-other", Type: "Box"})
	if err := f.links.LinkInstance("inst-other", p.ID, nil, true); err != nil {
		t.Fatalf("LinkInstance: %v", err)
	}

	old, ok := f.links.GetInstanceLink("inst-card")
	if !ok || old.IsMaster {
		t.Fatalf("expected inst-card to be demoted, got ok=%v %#v", ok, old)
	}
	if cur, _ := f.links.GetInstanceLink("inst-other"); !cur.IsMaster {
		t.Fatalf("expected inst-other to be the master")
	}
}

func TestLinks_FollowTreeMembership(t *testing.T) {
	f, p := newFixture(t)
	if _, err := f.tree.DeleteInstance("inst-card"); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}

	if f.links.IsLinkedInstance("inst-card") || len(f.links.Links()) != 0 || len(f.links.LinksForMaster(p.ID)) != 0 {
		t.Fatalf("expected the link of a removed instance to be hidden")
	}
	if _, ok := f.links.GetInstanceLink("inst-card"); ok {
		t.Fatalf("expected GetInstanceLink to skip hidden records")
	}
	if len(f.links.Records()) != 1 || !f.links.HasInstanceID("inst-card") {
		t.Fatalf("expected the record itself to be kept, got %#v", f.links.Records())
	}

	if !f.tree.Undo() {
		t.Fatalf("expected undo to succeed")
	}
	link, ok := f.links.GetInstanceLink("inst-card")
	if !ok || !link.IsMaster || link.MasterID != p.ID {
		t.Fatalf("expected undo to bring the master link back, got ok=%v %#v", ok, link)
	}
}

func TestDeletePrebuilt_RefusedWhileLinked(t *testing.T) {
	f, p := newFixture(t)
	if err := f.links.DeletePrebuilt(p.ID); !errors.Is(err, ErrPrebuiltInUse) {
		t.Fatalf("expected ErrPrebuiltInUse, got %v", err)
	}
	if _, err := f.tree.DeleteInstance("inst-card"); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}
	if err := f.links.DeletePrebuilt(p.ID); err != nil {
		t.Fatalf("DeletePrebuilt: %v", err)
	}
	if _, ok := f.links.GetPrebuilt(p.ID); ok {
		t.Fatalf("expected the prebuilt to be gone")
	}
	if got := f.links.Records(); len(got) != 0 {
		t.Fatalf("expected hidden records of the prebuilt to go with it, got %#v", got)
	}
}

func TestPruneLinks_DropsOnlyUnheldHiddenRecords(t *testing.T) {
	f, p := newFixture(t)
	for _, id := range []string{"inst-gone", "inst-held"} {
		if err := f.links.LinkInstance(id, p.ID, nil, false); err != nil {
			t.Fatalf("LinkInstance(%s): %v", id, err)
		}
	}

	n := f.links.PruneLinks(func(id string) bool { return id == "inst-held" })
	if n != 1 {
		t.Fatalf("expected 1 pruned record, got %d", n)
	}
	var got []string
	for _, l := range f.links.Records() {
		got = append(got, l.InstanceID)
	}
	if want := []string{"inst-card", "inst-held"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected records %v, got %v", want, got)
	}
}

func TestSyncMasterToPrebuilt_UpdatesTemplateOnly(t *testing.T) {
	f, p := newFixture(t)

	// An existing non-master instance.
	li, err := f.links.CreateLinkedInstance(p.ID)
	if err != nil {
		t.Fatalf("CreateLinkedInstance: %v", err)
	}
	id := f.add(t, li.Instance)
	if err := f.links.LinkInstance(id, p.ID, li.StyleIDMapping, false); err != nil {
		t.Fatalf("LinkInstance: %v", err)
	}
	before, _ := f.tree.FindInstance(id)

	label := "Card v2"
	f.tree.UpdateInstance("inst-card", tree.Patch{Label: &label})
	if err := f.links.SyncMasterToPrebuilt("inst-card", f.tree); err != nil {
		t.Fatalf("SyncMasterToPrebuilt: %v", err)
	}

	got, ok := f.links.GetPrebuilt(p.ID)
	if !ok || got.Root.Label != "Card v2" {
		t.Fatalf("expected the prebuilt to carry the new label, got ok=%v %q", ok, got.Root.Label)
	}

	if after, _ := f.tree.FindInstance(id); !reflect.DeepEqual(before, after) {
		t.Fatalf("expected existing linked instances to be untouched")
	}

	next, err := f.links.CreateLinkedInstance(p.ID)
	if err != nil {
		t.Fatalf("CreateLinkedInstance: %v", err)
	}
	if next.Instance.Label != "Card v2" {
		t.Fatalf("expected new instantiations to see the sync, got %q", next.Instance.Label)
	}
}

func TestSyncMasterToPrebuilt_RequiresMaster(t *testing.T) {
	f, p := newFixture(t)
	if err := f.links.LinkInstance("inst-title", p.ID, nil, false); err != nil {
		t.Fatalf("LinkInstance: %v", err)
	}
	if err := f.links.SyncMasterToPrebuilt("inst-title", f.tree); !errors.Is(err, ErrNotMaster) {
		t.Fatalf("expected ErrNotMaster, got %v", err)
	}
}

func TestHandleUpdate_SyncsNearestMaster(t *testing.T) {
	f, p := newFixture(t)
	f.tree.UpdateInstance("inst-title", tree.Patch{Props: map[string]any{"text": "Changed"}})

	synced, err := f.links.HandleUpdate("inst-title", f.tree)
	if err != nil || synced != "inst-card" {
		t.Fatalf("expected inst-card to be synced, got %q err=%v", synced, err)
	}

	got, _ := f.links.GetPrebuilt(p.ID)
	if text := got.Root.Children[0].Props["text"]; text != "Changed" {
		t.Fatalf("expected the prebuilt to carry the edit, got %v", text)
	}

	f.add(t, model.Instance{ID: "inst-loose", Type: "Box"})
	synced, err = f.links.HandleUpdate("inst-loose", f.tree)
	if err != nil || synced != "" {
		t.Fatalf("expected no sync outside a master, got %q err=%v", synced, err)
	}
}

func TestSyncMasterToPrebuilt_CapturesStyleEdits(t *testing.T) {
	f, p := newFixture(t)
	mustSet(t, f.styles, f.local, "padding", "24px", model.BreakpointBase)
	if got := f.links.MastersUsingSource(f.local, f.tree); !reflect.DeepEqual(got, []string{"inst-card"}) {
		t.Fatalf("expected inst-card to use the local source, got %v", got)
	}
	if err := f.links.SyncMasterToPrebuilt("inst-card", f.tree); err != nil {
		t.Fatalf("SyncMasterToPrebuilt: %v", err)
	}

	li, err := f.links.CreateLinkedInstance(p.ID)
	if err != nil {
		t.Fatalf("CreateLinkedInstance: %v", err)
	}
	if got := f.computed(li.StyleIDMapping[f.local], "padding", model.BreakpointBase); got != "24px" {
		t.Fatalf("expected the fork to carry 24px, got %q", got)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	f, _ := newFixture(t)
	reg := NewRegistry(f.styles)
	if err := reg.Restore(f.links.Prebuilts(), f.links.Records()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(f.links.Prebuilts(), reg.Prebuilts()) {
		t.Fatalf("prebuilts differ after restore")
	}
	if !reflect.DeepEqual(f.links.Records(), reg.Records()) {
		t.Fatalf("links differ after restore")
	}

	err := reg.Restore(nil, []model.InstanceLink{{InstanceID: model.RootID, MasterID: "x"}})
	if !errors.Is(err, ErrRootLink) {
		t.Fatalf("expected ErrRootLink, got %v", err)
	}
}
