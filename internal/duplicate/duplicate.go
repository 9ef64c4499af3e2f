package duplicate

import (
	"errors"
	"fmt"

	"pagecraft/internal/ids"
	"pagecraft/internal/linkage"
	"pagecraft/internal/model"
)

// Linker is the part of the linkage registry the engine talks to.
type Linker interface {
	GetInstanceLink(id string) (model.InstanceLink, bool)
	CreateLinkedInstance(masterID string) (linkage.LinkedInstance, error)
	LinkInstance(instanceID, masterID string, styleIDMapping map[string]string, isMaster bool) error
	// HasInstanceID reports whether an id is already taken.
	HasInstanceID(id string) bool
	DiscardStyleSources(sourceIDs []string)
}

// PendingLink is a link registration deferred until the clone is part of a tree.
type PendingLink struct {
	InstanceID     string            `json:"instanceId"`
	MasterID       string            `json:"masterId"`
	StyleIDMapping map[string]string `json:"styleIdMapping,omitempty"`
}

type Result struct {
	Instance model.Instance `json:"instance"`
	Links    []PendingLink  `json:"links"`
	// CreatedSources are the style sources forked for linked nodes of the clone.
	CreatedSources []string `json:"createdSources,omitempty"`
}

// DuplicateInstanceWithLinkage clones inst with fresh ids. Linked nodes are replaced by a
// new instantiation of their prebuilt rather than copied, and their link registrations
// are returned in Links for the caller to apply after inserting the clone. Unlinked nodes
// keep their props and share their style sources with the original. On error the
// sources forked so far are discarded.
func DuplicateInstanceWithLinkage(inst model.Instance, l Linker) (Result, error) {
	d := duplicator{l: l, minted: map[string]bool{}, res: Result{Links: []PendingLink{}}}
	clone, err := d.node(inst)
	if err != nil {
		l.DiscardStyleSources(d.res.CreatedSources)
		return Result{}, err
	}
	d.res.Instance = clone
	return d.res, nil
}

type duplicator struct {
	l      Linker
	minted map[string]bool
	res    Result
}

func (d *duplicator) newID() string {
	id := ids.NewUnique(ids.PrefixInstance, func(id string) bool {
		return d.minted[id] || d.l.HasInstanceID(id)
	})
	d.minted[id] = true
	return id
}

func (d *duplicator) node(inst model.Instance) (model.Instance, error) {
	if link, ok := d.l.GetInstanceLink(inst.ID); ok {
		li, err := d.l.CreateLinkedInstance(link.MasterID)
		if err != nil {
			return model.Instance{}, fmt.Errorf("duplicate linked instance %s: %w", inst.ID, err)
		}
		for _, id := range li.Instance.IDs() {
			d.minted[id] = true
		}
		d.res.CreatedSources = append(d.res.CreatedSources, li.CreatedSources...)
		d.res.Links = append(d.res.Links, PendingLink{
			InstanceID:     li.Instance.ID,
			MasterID:       link.MasterID,
			StyleIDMapping: li.StyleIDMapping,
		})
		return li.Instance, nil
	}

	out := model.Instance{
		ID:    d.newID(),
		Type:  inst.Type,
		Label: inst.Label,
		Props: model.CloneProps(inst.Props),
	}
	if inst.StyleSourceIDs != nil {
		out.StyleSourceIDs = append([]string{}, inst.StyleSourceIDs...)
	}
	for _, ch := range inst.Children {
		c, err := d.node(ch)
		if err != nil {
			return model.Instance{}, err
		}
		out.Children = append(out.Children, c)
	}
	return out, nil
}

// ApplyDuplicationLinks registers the deferred links. Call it only after the duplicated
// instance has been inserted into a tree.
func ApplyDuplicationLinks(l Linker, links []PendingLink) error {
	var errs []error
	for _, p := range links {
		if err := l.LinkInstance(p.InstanceID, p.MasterID, p.StyleIDMapping, false); err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", p.InstanceID, err))
		}
	}
	return errors.Join(errs...)
}
