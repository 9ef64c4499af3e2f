// Package editor is the single mutation surface over an editing session. It owns the
// instance tree, style sources, prebuilts and links, the clipboard and the catalog, and
// runs the follow-up effects (master sync, link visibility) that keep them consistent.
package editor

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pagecraft/internal/catalog"
	"pagecraft/internal/clipboard"
	"pagecraft/internal/linkage"
	"pagecraft/internal/model"
	"pagecraft/internal/styles"
	"pagecraft/internal/tree"
)

// DocumentVersion is the version written by Export.
const DocumentVersion = 1

type Options struct {
	Catalog         *catalog.Catalog
	HistoryCapacity int
	Logger          *slog.Logger
	// Now overrides the clock used for prebuilt timestamps.
	Now func() time.Time
}

type Editor struct {
	docID        string
	tree         *tree.Store
	styles       *styles.Registry
	links        *linkage.Registry
	clip         clipboard.Board
	cat          *catalog.Catalog
	log          *slog.Logger
	editingState model.State
}

// New returns an editor holding an empty document.
func New(opts Options) *Editor {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	st := styles.NewRegistry()
	e := &Editor{
		docID:        uuid.NewString(),
		tree:         tree.New(model.Instance{}, opts.HistoryCapacity),
		styles:       st,
		links:        linkage.NewRegistry(st),
		cat:          opts.Catalog,
		log:          opts.Logger,
		editingState: model.StateDefault,
	}
	if opts.Now != nil {
		e.links.SetClock(opts.Now)
	}
	e.links.SetMembership(e.tree.Contains)
	e.tree.OnUpdate(e.syncFrom)
	e.tree.OnUpdate(func(string) { e.pruneLinks() })
	e.tree.OnDelete(func([]string) { e.pruneLinks() })
	return e
}

// pruneLinks drops hidden link records whose instance no history snapshot holds any
// more, since no undo or redo can bring it back. Run it after every committed edit:
// a commit can evict the oldest snapshot or drop the redo tail.
func (e *Editor) pruneLinks() {
	var held map[string]bool
	keep := func(id string) bool {
		if held == nil {
			held = map[string]bool{}
			for _, snap := range e.tree.History().State().Snapshots {
				for _, x := range snap.IDs() {
					held[x] = true
				}
			}
		}
		return held[id]
	}
	if n := e.links.PruneLinks(keep); n > 0 {
		e.log.Debug("pruned links outside history", "count", n)
	}
}

// FromDocument restores an editor from its persisted form.
func FromDocument(doc model.Document, opts Options) (*Editor, error) {
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	e := New(opts)
	if strings.TrimSpace(doc.ID) != "" {
		e.docID = doc.ID
	}
	if err := e.styles.Restore(doc.StyleSources); err != nil {
		return nil, fmt.Errorf("restore style sources: %w", err)
	}
	if err := e.links.Restore(doc.Prebuilts, doc.Links); err != nil {
		return nil, fmt.Errorf("restore prebuilts: %w", err)
	}
	root := doc.Root
	if root.ID == "" {
		root = model.NewRoot()
	}
	if err := e.tree.Restore(root, doc.History, doc.SelectedID, doc.IsolatedID); err != nil {
		return nil, err
	}
	e.clip.Restore(doc.Clipboard, doc.ClipboardLinks)
	if doc.EditingState != "" {
		st, err := model.ParseState(string(doc.EditingState))
		if err != nil {
			return nil, err
		}
		e.editingState = st
	}
	return e, nil
}

// Export returns the plain nested-object form of the session.
func (e *Editor) Export() model.Document {
	hist := e.tree.History().State()
	doc := model.Document{
		Version:      DocumentVersion,
		ID:           e.docID,
		Root:         e.tree.Root(),
		StyleSources: e.styles.Sources(),
		Prebuilts:    e.links.Prebuilts(),
		Links:        e.links.Records(),
		SelectedID:   e.tree.SelectedID(),
		IsolatedID:   e.tree.IsolatedID(),
		EditingState: e.editingState,
		History:      &hist,
	}
	if entry, ok := e.clip.Entry(); ok {
		doc.Clipboard = &entry
		doc.ClipboardLinks = e.clip.Links()
	}
	return doc
}

func (e *Editor) DocumentID() string        { return e.docID }
func (e *Editor) Catalog() *catalog.Catalog { return e.cat }
func (e *Editor) Root() model.Instance      { return e.tree.Root() }
func (e *Editor) SelectedID() string        { return e.tree.SelectedID() }
func (e *Editor) IsolatedID() string        { return e.tree.IsolatedID() }
func (e *Editor) EditingState() model.State { return e.editingState }

func (e *Editor) FindInstance(id string) (model.Instance, bool) {
	return e.tree.FindInstance(id)
}

func (e *Editor) SelectedInstance() (model.Instance, bool) {
	return e.tree.SelectedInstance()
}

func (e *Editor) Select(id string) error  { return e.tree.Select(id) }
func (e *Editor) Isolate(id string) error { return e.tree.Isolate(id) }

// SetEditingState sets the pseudo-state the selected instance previews.
func (e *Editor) SetEditingState(state model.State) {
	if state == "" {
		state = model.StateDefault
	}
	e.editingState = state
}

// AddInstance inserts inst as-is. See tree.Store.AddInstance for the no-op rules.
func (e *Editor) AddInstance(inst model.Instance, parentID string, index int) (string, bool, error) {
	parentID = normalizeParent(parentID)
	if err := e.checkContainer(parentID); err != nil {
		return "", false, err
	}
	id, ok, err := e.tree.AddInstance(inst, parentID, index)
	if err != nil || !ok {
		if err == nil {
			e.log.Debug("add skipped: parent not found", "parent", parentID)
		}
		return id, ok, err
	}
	e.log.Debug("instance added", "id", id, "parent", parentID)
	e.pruneLinks()
	e.syncFrom(parentID)
	return id, true, nil
}

// AddFromCatalog materializes a new instance of typ with its catalog default props and
// an empty local style source of its own.
func (e *Editor) AddFromCatalog(typ, parentID string, index int) (string, bool, error) {
	inst, err := e.cat.NewInstance(typ)
	if err != nil {
		return "", false, err
	}
	parentID = normalizeParent(parentID)
	if !e.tree.Contains(parentID) {
		return "", false, nil
	}
	if err := e.checkContainer(parentID); err != nil {
		return "", false, err
	}
	sid := e.styles.CreateStyleSource(model.StyleKindLocal, inst.Label)
	inst.StyleSourceIDs = []string{sid}
	id, ok, err := e.AddInstance(inst, parentID, index)
	if err != nil || !ok {
		e.styles.DeleteStyleSource(sid)
		return "", ok, err
	}
	return id, true, nil
}

// checkContainer rejects inserting under a known instance whose catalog entry is a leaf.
// Unknown parents are left to the tree's no-op rule; uncatalogued types are permissive.
func (e *Editor) checkContainer(parentID string) error {
	parent, ok := e.tree.FindInstance(parentID)
	if !ok || parent.ID == model.RootID {
		return nil
	}
	if _, known := e.cat.Lookup(parent.Type); known && !e.cat.IsContainer(parent.Type) {
		return fmt.Errorf("%w: %s (%s)", ErrNotContainer, parent.ID, parent.Type)
	}
	return nil
}

// UpdateInstance applies a shallow patch. Editing a node inside a master instance syncs
// the master into its prebuilt.
func (e *Editor) UpdateInstance(id string, patch tree.Patch) bool {
	ok := e.tree.UpdateInstance(id, patch)
	if !ok {
		e.log.Debug("update skipped", "id", id)
	}
	return ok
}

// MergeProps sets the given props on top of the existing ones.
func (e *Editor) MergeProps(id string, props map[string]any) bool {
	cur, ok := e.tree.FindInstance(id)
	if !ok || len(props) == 0 {
		return false
	}
	merged := model.CloneProps(cur.Props)
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range model.CloneProps(props) {
		merged[k] = v
	}
	return e.UpdateInstance(id, tree.Patch{Props: merged})
}

func (e *Editor) DeleteInstance(id string) (bool, error) {
	parentID, _, _ := e.tree.ParentOf(id)
	ok, err := e.tree.DeleteInstance(id)
	if err != nil {
		e.log.Warn("delete rejected", "id", id, "error", err)
		return false, err
	}
	if ok {
		e.log.Debug("instance deleted", "id", id)
		e.syncFrom(parentID)
	}
	return ok, nil
}

func (e *Editor) MoveInstance(id, newParentID string, index int) (bool, error) {
	newParentID = normalizeParent(newParentID)
	if err := e.checkContainer(newParentID); err != nil {
		return false, err
	}
	oldParentID, _, _ := e.tree.ParentOf(id)
	ok, err := e.tree.MoveInstance(id, newParentID, index)
	if err != nil {
		e.log.Warn("move rejected", "id", id, "parent", newParentID, "error", err)
		return false, err
	}
	if ok {
		e.pruneLinks()
		e.syncFrom(oldParentID)
		if newParentID != oldParentID {
			e.syncFrom(newParentID)
		}
	}
	return ok, nil
}

// Undo restores the previous tree snapshot. Prebuilts are not re-synced.
func (e *Editor) Undo() bool { return e.tree.Undo() }

// Redo restores the next tree snapshot. Prebuilts are not re-synced.
func (e *Editor) Redo() bool { return e.tree.Redo() }

func (e *Editor) CanUndo() bool { return e.tree.CanUndo() }
func (e *Editor) CanRedo() bool { return e.tree.CanRedo() }

// syncFrom writes the master instance enclosing id (if any) back into its prebuilt.
func (e *Editor) syncFrom(id string) {
	if id == "" {
		return
	}
	masterID, err := e.links.HandleUpdate(id, e.tree)
	if err != nil {
		e.log.Warn("master sync failed", "id", id, "error", err)
		return
	}
	if masterID != "" {
		e.log.Debug("master synced", "master", masterID, "edited", id)
	}
}

func normalizeParent(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.RootID
	}
	return id
}
