package editor

import (
	"fmt"

	"pagecraft/internal/duplicate"
	"pagecraft/internal/model"
	"pagecraft/internal/tree"
)

// SaveAsPrebuilt snapshots the subtree at instanceID as a new prebuilt and links the
// instance as its master, so later edits to it flow into the prebuilt.
func (e *Editor) SaveAsPrebuilt(instanceID, name, category string) (model.Prebuilt, error) {
	if normalizeParent(instanceID) == model.RootID {
		return model.Prebuilt{}, tree.ErrRootInstance
	}
	inst, ok := e.tree.FindInstance(instanceID)
	if !ok {
		return model.Prebuilt{}, tree.NotFoundError{Kind: "instance", ID: instanceID}
	}
	p, err := e.links.SavePrebuilt(name, category, inst)
	if err != nil {
		return model.Prebuilt{}, err
	}
	if err := e.links.LinkInstance(inst.ID, p.ID, nil, true); err != nil {
		return model.Prebuilt{}, err
	}
	e.log.Info("prebuilt saved", "prebuilt", p.ID, "master", inst.ID, "name", p.Name)
	return p, nil
}

// InsertPrebuilt instantiates a prebuilt under parentID and links the new instance to it.
func (e *Editor) InsertPrebuilt(masterID, parentID string, index int) (string, error) {
	parentID = normalizeParent(parentID)
	if !e.tree.Contains(parentID) {
		return "", tree.NotFoundError{Kind: "instance", ID: parentID}
	}
	if err := e.checkContainer(parentID); err != nil {
		return "", err
	}
	li, err := e.links.CreateLinkedInstance(masterID)
	if err != nil {
		return "", err
	}
	id, ok, err := e.AddInstance(li.Instance, parentID, index)
	if err != nil || !ok {
		e.links.DiscardStyleSources(li.CreatedSources)
		if err == nil {
			err = tree.NotFoundError{Kind: "instance", ID: parentID}
		}
		return "", err
	}
	if err := e.links.LinkInstance(id, masterID, li.StyleIDMapping, false); err != nil {
		return "", err
	}
	e.log.Debug("prebuilt inserted", "prebuilt", masterID, "id", id)
	return id, nil
}

func (e *Editor) Prebuilts() []model.Prebuilt { return e.links.Prebuilts() }

func (e *Editor) Prebuilt(id string) (model.Prebuilt, bool) { return e.links.GetPrebuilt(id) }

func (e *Editor) DeletePrebuilt(id string) error { return e.links.DeletePrebuilt(id) }

func (e *Editor) Links() []model.InstanceLink { return e.links.Links() }

func (e *Editor) Link(instanceID string) (model.InstanceLink, bool) {
	return e.links.GetInstanceLink(instanceID)
}

// Unlink detaches an instance from its prebuilt; the instance itself is kept.
func (e *Editor) Unlink(instanceID string) bool { return e.links.UnlinkInstance(instanceID) }

// Duplicate inserts a linkage-aware clone of id right after it.
func (e *Editor) Duplicate(id string) (string, error) {
	if normalizeParent(id) == model.RootID {
		return "", tree.ErrRootInstance
	}
	inst, ok := e.tree.FindInstance(id)
	if !ok {
		return "", tree.NotFoundError{Kind: "instance", ID: id}
	}
	parentID, idx, _ := e.tree.ParentOf(inst.ID)
	res, err := duplicate.DuplicateInstanceWithLinkage(inst, e.links)
	if err != nil {
		return "", err
	}
	return e.insertDuplicate(res, parentID, idx+1)
}

// insertDuplicate adds a duplication result and registers its links. A clone the tree
// rejects takes its forked style sources with it.
func (e *Editor) insertDuplicate(res duplicate.Result, parentID string, index int) (string, error) {
	newID, ok, err := e.AddInstance(res.Instance, parentID, index)
	if err != nil || !ok {
		e.links.DiscardStyleSources(res.CreatedSources)
		if err == nil {
			err = tree.NotFoundError{Kind: "instance", ID: parentID}
		}
		return "", err
	}
	if err := duplicate.ApplyDuplicationLinks(e.links, res.Links); err != nil {
		return newID, fmt.Errorf("apply duplication links: %w", err)
	}
	return newID, nil
}

// Copy puts a deep copy of id on the clipboard.
func (e *Editor) Copy(id string) error {
	if normalizeParent(id) == model.RootID {
		return tree.ErrRootInstance
	}
	inst, ok := e.tree.FindInstance(id)
	if !ok {
		return tree.NotFoundError{Kind: "instance", ID: id}
	}
	e.clip.Copy(inst, e.links.Links()...)
	return nil
}

// Cut copies id and then deletes it.
func (e *Editor) Cut(id string) error {
	if err := e.Copy(id); err != nil {
		return err
	}
	_, err := e.DeleteInstance(id)
	return err
}

// Paste inserts a fresh clone of the clipboard entry into the selected instance when
// it accepts children, otherwise at the end of the root.
func (e *Editor) Paste() (string, error) {
	res, ok, err := e.clip.Paste(e.links)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrEmptyClipboard
	}
	return e.insertDuplicate(res, e.pasteTarget(), -1)
}

func (e *Editor) pasteTarget() string {
	sel, ok := e.tree.SelectedInstance()
	if ok && (sel.ID == model.RootID || e.cat.IsContainer(sel.Type)) {
		return sel.ID
	}
	return model.RootID
}

func (e *Editor) ClipboardEntry() (model.Instance, bool) { return e.clip.Entry() }
