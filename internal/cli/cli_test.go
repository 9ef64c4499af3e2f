package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pagecraft/internal/model"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// newTestDir isolates the config dir and returns a fresh store dir.
func newTestDir(t *testing.T) string {
	t.Helper()
	t.Setenv("PAGECRAFT_CONFIG_DIR", t.TempDir())
	return t.TempDir()
}

// mustRun runs args against dir and decodes the data envelope into out (when non-nil).
func mustRun(t *testing.T, dir string, out any, args ...string) {
	t.Helper()
	stdout, stderr, err := runCLI(t, append([]string{"--dir", dir}, args...))
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, string(stderr))
	}
	if out == nil {
		return
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("%v: decode envelope: %v\nstdout: %s", args, err, string(stdout))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("%v: decode data: %v\ndata: %s", args, err, string(env.Data))
	}
}

func addType(t *testing.T, dir, typ, parent string) model.Instance {
	t.Helper()
	var inst model.Instance
	args := []string{"instances", "add-type", typ}
	if parent != "" {
		args = append(args, "--parent", parent)
	}
	mustRun(t, dir, &inst, args...)
	if inst.ID == "" {
		t.Fatalf("add-type %s: empty id", typ)
	}
	return inst
}

func TestInitIsIdempotent(t *testing.T) {
	dir := newTestDir(t)

	var first, second struct {
		DocumentID string `json:"documentId"`
		Created    bool   `json:"created"`
	}
	mustRun(t, dir, &first, "init")
	mustRun(t, dir, &second, "init")
	if !first.Created || second.Created {
		t.Fatalf("created flags: first=%v second=%v", first.Created, second.Created)
	}
	if first.DocumentID == "" || first.DocumentID != second.DocumentID {
		t.Fatalf("document id changed: %q -> %q", first.DocumentID, second.DocumentID)
	}

	var tree struct {
		Root model.Instance `json:"root"`
	}
	mustRun(t, dir, &tree, "tree")
	if tree.Root.ID != model.RootID || len(tree.Root.Children) != 0 {
		t.Fatalf("unexpected root: %+v", tree.Root)
	}
}

func TestAddTypeStylesAndComputed(t *testing.T) {
	dir := newTestDir(t)
	h := addType(t, dir, "Heading", "")
	if h.Props["text"] != "Heading" || len(h.StyleSourceIDs) != 1 {
		t.Fatalf("unexpected heading: %+v", h)
	}
	sid := h.StyleSourceIDs[0]

	mustRun(t, dir, nil, "styles", "set", sid, "color", "red")
	mustRun(t, dir, nil, "styles", "set", sid, "color", "blue", "--state", "hover")
	mustRun(t, dir, nil, "styles", "set", sid, "fontSize", "20px", "--breakpoint", "mobile")

	var base map[string]string
	mustRun(t, dir, &base, "styles", "computed", h.ID)
	if base["color"] != "red" || base["fontWeight"] != "700" {
		t.Fatalf("base computed: %#v", base)
	}
	if _, ok := base["fontSize"]; ok {
		t.Fatalf("mobile declaration leaked into base: %#v", base)
	}

	var hover map[string]string
	mustRun(t, dir, &hover, "styles", "computed", h.ID, "--state", "hover", "--breakpoint", "mobile")
	if hover["color"] != "blue" || hover["fontSize"] != "20px" {
		t.Fatalf("hover/mobile computed: %#v", hover)
	}

	// Preview shows the editing state only on the selected instance.
	mustRun(t, dir, nil, "styles", "editing-state", "hover")
	var preview map[string]string
	mustRun(t, dir, &preview, "styles", "preview", h.ID)
	if preview["color"] != "red" {
		t.Fatalf("unselected preview: %#v", preview)
	}
	mustRun(t, dir, nil, "instances", "select", h.ID)
	mustRun(t, dir, &preview, "styles", "preview", h.ID)
	if preview["color"] != "blue" {
		t.Fatalf("selected preview: %#v", preview)
	}

	var unset map[string]any
	mustRun(t, dir, &unset, "styles", "unset", sid, "color", "--state", "hover")
	mustRun(t, dir, &unset, "styles", "unset", sid, "color", "--state", "hover")
	if unset["changed"] != false {
		t.Fatalf("second unset should be a no-op: %#v", unset)
	}
}

func TestStyleSourceLifecycle(t *testing.T) {
	dir := newTestDir(t)
	txt := addType(t, dir, "Text", "")

	var src model.StyleSource
	mustRun(t, dir, &src, "styles", "create", "--name", "brand", "--kind", "global")
	if src.Kind != model.StyleKindGlobal || src.Name != "brand" {
		t.Fatalf("unexpected source: %+v", src)
	}
	mustRun(t, dir, &src, "styles", "rename", src.ID, "brand-primary")
	if src.Name != "brand-primary" {
		t.Fatalf("rename: %+v", src)
	}
	mustRun(t, dir, nil, "styles", "set", src.ID, "color", "teal")

	var inst model.Instance
	mustRun(t, dir, &inst, "styles", "attach", txt.ID, src.ID)
	if len(inst.StyleSourceIDs) != 2 || inst.StyleSourceIDs[1] != src.ID {
		t.Fatalf("attach: %+v", inst.StyleSourceIDs)
	}
	var computed map[string]string
	mustRun(t, dir, &computed, "styles", "computed", txt.ID)
	if computed["color"] != "teal" {
		t.Fatalf("computed after attach: %#v", computed)
	}

	mustRun(t, dir, nil, "styles", "delete", src.ID)
	computed = nil
	mustRun(t, dir, &computed, "styles", "computed", txt.ID)
	if _, ok := computed["color"]; ok {
		t.Fatalf("deleted source still resolves: %#v", computed)
	}

	var names []string
	mustRun(t, dir, &names, "catalog", "list", "--names")
	if len(names) == 0 || names[0] != "Body" {
		t.Fatalf("catalog names: %v", names)
	}
}

func TestUpdateMergesProps(t *testing.T) {
	dir := newTestDir(t)
	b := addType(t, dir, "Button", "")

	var got model.Instance
	mustRun(t, dir, &got, "instances", "update", b.ID, "--label", "CTA", "--prop", "text=Buy now", "--prop", "disabled=true")
	if got.Label != "CTA" || got.Props["text"] != "Buy now" || got.Props["disabled"] != true {
		t.Fatalf("unexpected update: %+v", got)
	}
	if got.Props["type"] != "button" {
		t.Fatalf("merge dropped existing prop: %+v", got.Props)
	}

	_, _, err := runCLI(t, []string{"--dir", dir, "instances", "update", b.ID})
	if err == nil {
		t.Fatalf("expected error for empty update")
	}
}

func TestMoveAndDeleteErrors(t *testing.T) {
	dir := newTestDir(t)
	sec := addType(t, dir, "Section", "")
	inner := addType(t, dir, "Box", sec.ID)

	_, _, err := runCLI(t, []string{"--dir", dir, "instances", "move", sec.ID, "--parent", inner.ID})
	if err == nil || !strings.Contains(err.Error(), "itself") {
		t.Fatalf("expected move-into-self error, got %v", err)
	}
	_, _, err = runCLI(t, []string{"--dir", dir, "instances", "delete", model.RootID})
	if err == nil {
		t.Fatalf("expected error deleting root")
	}
	_, _, err = runCLI(t, []string{"--dir", dir, "instances", "show", "inst-missing"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}

	var res map[string]any
	mustRun(t, dir, &res, "instances", "delete", "inst-missing")
	if res["changed"] != false {
		t.Fatalf("delete of unknown id should be a no-op: %#v", res)
	}

	mustRun(t, dir, nil, "instances", "move", inner.ID)
	var tree struct {
		Root model.Instance `json:"root"`
	}
	mustRun(t, dir, &tree, "tree")
	if len(tree.Root.Children) != 2 || tree.Root.Children[1].ID != inner.ID {
		t.Fatalf("move to root failed: %+v", tree.Root.Children)
	}
}

func TestMasterEditsFlowIntoPrebuiltOnly(t *testing.T) {
	dir := newTestDir(t)
	card := addType(t, dir, "Section", "")
	title := addType(t, dir, "Heading", card.ID)

	var p model.Prebuilt
	mustRun(t, dir, &p, "prebuilts", "save", card.ID, "--name", "Hero", "--category", "layout")
	if p.ID == "" || p.Name != "Hero" {
		t.Fatalf("unexpected prebuilt: %+v", p)
	}

	var inserted struct {
		Instance model.Instance     `json:"instance"`
		Link     model.InstanceLink `json:"link"`
	}
	mustRun(t, dir, &inserted, "prebuilts", "insert", p.ID)
	if inserted.Link.MasterID != p.ID || inserted.Link.IsMaster {
		t.Fatalf("unexpected link: %+v", inserted.Link)
	}

	mustRun(t, dir, nil, "instances", "update", title.ID, "--prop", "text=Updated")

	mustRun(t, dir, &p, "prebuilts", "show", p.ID)
	if len(p.Root.Children) != 1 || p.Root.Children[0].Props["text"] != "Updated" {
		t.Fatalf("prebuilt not synced: %+v", p.Root)
	}

	var shown struct {
		Instance model.Instance `json:"instance"`
	}
	mustRun(t, dir, &shown, "instances", "show", inserted.Instance.ID)
	if got := shown.Instance.Children[0].Props["text"]; got != "Heading" {
		t.Fatalf("linked instance changed: %v", got)
	}

	var links []model.InstanceLink
	mustRun(t, dir, &links, "links", "list")
	if len(links) != 2 {
		t.Fatalf("expected master + linked instance, got %+v", links)
	}

	_, _, err := runCLI(t, []string{"--dir", dir, "prebuilts", "delete", p.ID})
	if err == nil {
		t.Fatalf("expected prebuilt in use error")
	}
}

func TestCutPasteKeepsLinkAcrossInvocations(t *testing.T) {
	dir := newTestDir(t)
	card := addType(t, dir, "Section", "")
	var p model.Prebuilt
	mustRun(t, dir, &p, "prebuilts", "save", card.ID, "--name", "Card")
	var inserted struct {
		Instance model.Instance `json:"instance"`
	}
	mustRun(t, dir, &inserted, "prebuilts", "insert", p.ID)

	mustRun(t, dir, nil, "cut", inserted.Instance.ID)
	var pasted model.Instance
	mustRun(t, dir, &pasted, "paste")
	if pasted.ID == "" || pasted.ID == inserted.Instance.ID {
		t.Fatalf("paste should mint a fresh id: %+v", pasted)
	}

	var link model.InstanceLink
	mustRun(t, dir, &link, "links", "show", pasted.ID)
	if link.MasterID != p.ID {
		t.Fatalf("pasted instance lost its link: %+v", link)
	}
}

func TestLinksFollowUndoAcrossInvocations(t *testing.T) {
	dir := newTestDir(t)
	card := addType(t, dir, "Section", "")
	var p model.Prebuilt
	mustRun(t, dir, &p, "prebuilts", "save", card.ID, "--name", "Card")
	mustRun(t, dir, nil, "links", "unlink", card.ID)

	var inserted struct {
		Instance model.Instance `json:"instance"`
	}
	mustRun(t, dir, &inserted, "prebuilts", "insert", p.ID)
	mustRun(t, dir, nil, "instances", "delete", inserted.Instance.ID)
	mustRun(t, dir, nil, "undo")

	var link model.InstanceLink
	mustRun(t, dir, &link, "links", "show", inserted.Instance.ID)
	if link.MasterID != p.ID {
		t.Fatalf("expected undo of the delete to restore the link: %+v", link)
	}

	// Back to before the insert: no phantom link, and the prebuilt can go.
	mustRun(t, dir, nil, "undo")
	var links []model.InstanceLink
	mustRun(t, dir, &links, "links", "list")
	if len(links) != 0 {
		t.Fatalf("expected no links after undoing the insert, got %+v", links)
	}
	mustRun(t, dir, nil, "prebuilts", "delete", p.ID)
}

func TestUndoRedo(t *testing.T) {
	dir := newTestDir(t)
	addType(t, dir, "Text", "")

	var step struct {
		Changed bool `json:"changed"`
		CanUndo bool `json:"canUndo"`
		CanRedo bool `json:"canRedo"`
	}
	mustRun(t, dir, &step, "undo")
	if !step.Changed || !step.CanRedo {
		t.Fatalf("undo: %+v", step)
	}
	var tree struct {
		Root model.Instance `json:"root"`
	}
	mustRun(t, dir, &tree, "tree")
	if len(tree.Root.Children) != 0 {
		t.Fatalf("undo left children: %+v", tree.Root.Children)
	}

	mustRun(t, dir, &step, "redo")
	if !step.Changed || step.CanRedo {
		t.Fatalf("redo: %+v", step)
	}
	mustRun(t, dir, &step, "redo")
	if step.Changed {
		t.Fatalf("redo past the end should be a no-op")
	}
}

func TestBuildCreateFromResponse(t *testing.T) {
	dir := newTestDir(t)
	path := filepath.Join(t.TempDir(), "response.json")
	resp := "```json\n" + `{"action":"create","message":"ok","components":[
	  {"type":"Section","label":"Hero","styles":{"padding":"48px"},"responsiveStyles":{"mobile":{"padding":"16px"}},
	   "children":[{"type":"Heading","props":{"text":"Welcome"}},{"type":"Button","props":{"text":"Go"}}]}]}` + "\n```"
	if err := os.WriteFile(path, []byte(resp), 0o644); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Action  string   `json:"action"`
		Created []string `json:"created"`
	}
	mustRun(t, dir, &res, "build", path)
	if res.Action != "create" || len(res.Created) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	var shown struct {
		Instance model.Instance `json:"instance"`
	}
	mustRun(t, dir, &shown, "instances", "show", res.Created[0])
	if shown.Instance.Label != "Hero" || len(shown.Instance.Children) != 2 {
		t.Fatalf("unexpected tree: %+v", shown.Instance)
	}

	var mobile map[string]string
	mustRun(t, dir, &mobile, "styles", "computed", res.Created[0], "--breakpoint", "mobile")
	if mobile["padding"] != "16px" {
		t.Fatalf("mobile padding: %#v", mobile)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"action":"create","components":[{"type":"Nope"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"--dir", dir, "build", bad})
	if err == nil {
		t.Fatalf("expected error for unknown component type")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := newTestDir(t)
	sec := addType(t, dir, "Section", "")
	addType(t, dir, "Text", sec.ID)

	out := filepath.Join(t.TempDir(), "doc.json")
	mustRun(t, dir, nil, "export", "--out", out)

	other := t.TempDir()
	var imported struct {
		Instances int `json:"instances"`
	}
	mustRun(t, other, &imported, "import", out)
	if imported.Instances != 3 {
		t.Fatalf("imported instance count = %d, want 3", imported.Instances)
	}

	var a, b model.Document
	mustRun(t, dir, &a, "export")
	mustRun(t, other, &b, "export")
	if !jsonDeepEqual(a.Root, b.Root) || !jsonDeepEqual(a.StyleSources, b.StyleSources) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", a.Root, b.Root)
	}
}

func TestYAMLOutputAndEvents(t *testing.T) {
	dir := newTestDir(t)
	addType(t, dir, "Text", "")

	stdout, _, err := runCLI(t, []string{"--dir", dir, "--format", "yaml", "catalog", "show", "Text"})
	if err != nil {
		t.Fatalf("catalog show: %v", err)
	}
	if !strings.HasPrefix(string(stdout), "data:") || !strings.Contains(string(stdout), "type: Text") {
		t.Fatalf("unexpected yaml:\n%s", string(stdout))
	}

	var evs []model.Event
	mustRun(t, dir, &evs, "events", "list")
	if len(evs) != 1 || evs[0].Type != "instance.add" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestTreeText(t *testing.T) {
	dir := newTestDir(t)
	sec := addType(t, dir, "Section", "")
	txt := addType(t, dir, "Text", sec.ID)

	stdout, _, err := runCLI(t, []string{"--dir", dir, "tree", "--text"})
	if err != nil {
		t.Fatalf("tree --text: %v", err)
	}
	for _, want := range []string{model.RootID, sec.ID, txt.ID} {
		if !strings.Contains(string(stdout), want) {
			t.Fatalf("tree output missing %s:\n%s", want, string(stdout))
		}
	}
}

func TestDocsCommand(t *testing.T) {
	stdout, _, err := runCLI(t, []string{"docs", "styles", "--raw"})
	if err != nil {
		t.Fatalf("docs styles: %v", err)
	}
	if !strings.HasPrefix(string(stdout), "# Styles") {
		t.Fatalf("unexpected docs output:\n%s", string(stdout))
	}
	if _, _, err := runCLI(t, []string{"docs", "nope"}); err == nil {
		t.Fatalf("expected unknown topic error")
	}
}

func jsonDeepEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
