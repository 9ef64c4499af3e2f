package linkage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pagecraft/internal/ids"
	"pagecraft/internal/model"
	"pagecraft/internal/styles"
)

var (
	ErrRootLink      = errors.New("root instance cannot be linked")
	ErrNotMaster     = errors.New("instance is not the master of its prebuilt")
	ErrPrebuiltInUse = errors.New("prebuilt is still referenced by linked instances")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Tree is the read side of the instance tree the registry needs for synchronization.
type Tree interface {
	FindInstance(id string) (model.Instance, bool)
	Ancestors(id string) []string
}

// LinkedInstance is a fresh clone of a prebuilt, not yet inserted or linked.
type LinkedInstance struct {
	Instance       model.Instance    `json:"instance"`
	StyleIDMapping map[string]string `json:"styleIdMapping"`
	// CreatedSources are the style sources forked for this clone. A caller that gives
	// up on the clone passes them to DiscardStyleSources.
	CreatedSources []string `json:"createdSources,omitempty"`
}

// Registry owns prebuilts (master definitions) and the links from tree instances to them.
type Registry struct {
	styles *styles.Registry
	now    func() time.Time

	prebuilts     map[string]*model.Prebuilt
	prebuiltOrder []string
	links         map[string]*model.InstanceLink

	// contains reports tree membership. Records of instances outside the tree are kept
	// but hidden, so undo and redo bring their links back with them.
	contains func(id string) bool
}

func NewRegistry(st *styles.Registry) *Registry {
	return &Registry{
		styles:    st,
		now:       func() time.Time { return time.Now().UTC() },
		prebuilts: map[string]*model.Prebuilt{},
		links:     map[string]*model.InstanceLink{},
	}
}

// SetClock overrides the time source used for prebuilt timestamps.
func (r *Registry) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// SetMembership makes contains the judge of which link records are visible.
func (r *Registry) SetMembership(contains func(id string) bool) {
	r.contains = contains
}

func (r *Registry) visible(id string) (*model.InstanceLink, bool) {
	l, ok := r.links[id]
	if !ok || (r.contains != nil && !r.contains(id)) {
		return nil, false
	}
	return l, true
}

// HasInstanceID reports whether id belongs to a tree instance or to any link record,
// hidden ones included.
func (r *Registry) HasInstanceID(id string) bool {
	if _, ok := r.links[id]; ok {
		return true
	}
	return r.contains != nil && r.contains(id)
}

// SavePrebuilt snapshots inst and every style source it references as a new prebuilt.
func (r *Registry) SavePrebuilt(name, category string, inst model.Instance) (model.Prebuilt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Prebuilt{}, errors.New("prebuilt name is empty")
	}
	if inst.ID == model.RootID {
		return model.Prebuilt{}, ErrRootLink
	}
	now := r.now()
	p := model.Prebuilt{
		ID: ids.NewUnique(ids.PrefixPrebuilt, func(id string) bool {
			_, ok := r.prebuilts[id]
			return ok
		}),
		Name:         name,
		Category:     strings.TrimSpace(category),
		Root:         inst.Clone(),
		StyleSources: r.snapshotSources(inst),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.prebuilts[p.ID] = &p
	r.prebuiltOrder = append(r.prebuiltOrder, p.ID)
	return p.Clone(), nil
}

func (r *Registry) snapshotSources(inst model.Instance) []model.StyleSource {
	out := []model.StyleSource{}
	for _, sid := range inst.StyleIDs() {
		if src, ok := r.styles.Get(sid); ok {
			out = append(out, src)
		}
	}
	return out
}

func (r *Registry) GetPrebuilt(id string) (model.Prebuilt, bool) {
	p, ok := r.prebuilts[strings.TrimSpace(id)]
	if !ok {
		return model.Prebuilt{}, false
	}
	return p.Clone(), true
}

// Prebuilts returns every prebuilt in creation order.
func (r *Registry) Prebuilts() []model.Prebuilt {
	out := make([]model.Prebuilt, 0, len(r.prebuiltOrder))
	for _, id := range r.prebuiltOrder {
		out = append(out, r.prebuilts[id].Clone())
	}
	return out
}

// DeletePrebuilt removes a prebuilt that no visible link references. Hidden records of
// the prebuilt go with it.
func (r *Registry) DeletePrebuilt(id string) error {
	id = strings.TrimSpace(id)
	if _, ok := r.prebuilts[id]; !ok {
		return NotFoundError{Kind: "prebuilt", ID: id}
	}
	if len(r.LinksForMaster(id)) > 0 {
		return fmt.Errorf("%w: %s", ErrPrebuiltInUse, id)
	}
	for instID, l := range r.links {
		if l.MasterID == id {
			delete(r.links, instID)
		}
	}
	delete(r.prebuilts, id)
	for i, x := range r.prebuiltOrder {
		if x == id {
			r.prebuiltOrder = append(r.prebuiltOrder[:i], r.prebuiltOrder[i+1:]...)
			break
		}
	}
	return nil
}

// LinkInstance records (or replaces) the link for instanceID. Marking a link as master
// demotes any other master of the same prebuilt.
func (r *Registry) LinkInstance(instanceID, masterID string, styleIDMapping map[string]string, isMaster bool) error {
	instanceID = strings.TrimSpace(instanceID)
	masterID = strings.TrimSpace(masterID)
	if instanceID == model.RootID {
		return ErrRootLink
	}
	if instanceID == "" {
		return errors.New("instance id is empty")
	}
	if _, ok := r.prebuilts[masterID]; !ok {
		return NotFoundError{Kind: "prebuilt", ID: masterID}
	}
	if isMaster {
		for _, l := range r.links {
			if l.MasterID == masterID && l.InstanceID != instanceID {
				l.IsMaster = false
			}
		}
	}
	link := model.InstanceLink{
		InstanceID:     instanceID,
		MasterID:       masterID,
		StyleIDMapping: styleIDMapping,
		IsMaster:       isMaster,
	}.Clone()
	r.links[instanceID] = &link
	return nil
}

func (r *Registry) UnlinkInstance(instanceID string) bool {
	instanceID = strings.TrimSpace(instanceID)
	if _, ok := r.visible(instanceID); !ok {
		return false
	}
	delete(r.links, instanceID)
	return true
}

// PruneLinks drops the records of instances for which keep reports false and returns
// how many were removed. Visible links are never pruned.
func (r *Registry) PruneLinks(keep func(id string) bool) int {
	n := 0
	for id := range r.links {
		if _, ok := r.visible(id); ok || keep(id) {
			continue
		}
		delete(r.links, id)
		n++
	}
	return n
}

func (r *Registry) IsLinkedInstance(id string) bool {
	_, ok := r.visible(strings.TrimSpace(id))
	return ok
}

func (r *Registry) GetInstanceLink(id string) (model.InstanceLink, bool) {
	l, ok := r.visible(strings.TrimSpace(id))
	if !ok {
		return model.InstanceLink{}, false
	}
	return l.Clone(), true
}

// Links returns every visible link ordered by instance id.
func (r *Registry) Links() []model.InstanceLink {
	out := make([]model.InstanceLink, 0, len(r.links))
	for id, l := range r.links {
		if _, ok := r.visible(id); ok {
			out = append(out, l.Clone())
		}
	}
	sortLinks(out)
	return out
}

// Records returns every link record, hidden ones included, ordered by instance id.
func (r *Registry) Records() []model.InstanceLink {
	out := make([]model.InstanceLink, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, l.Clone())
	}
	sortLinks(out)
	return out
}

func sortLinks(links []model.InstanceLink) {
	sort.Slice(links, func(i, j int) bool { return links[i].InstanceID < links[j].InstanceID })
}

func (r *Registry) LinksForMaster(masterID string) []model.InstanceLink {
	out := []model.InstanceLink{}
	for _, l := range r.Links() {
		if l.MasterID == masterID {
			out = append(out, l)
		}
	}
	return out
}

// CreateLinkedInstance clones the prebuilt with fresh instance ids. Global style sources
// are reused by name when the registry already has one; local sources are forked with
// their declarations copied. The mapping lists every rewritten style id. The clone is
// neither inserted nor linked. On error no forked source is left behind.
func (r *Registry) CreateLinkedInstance(masterID string) (LinkedInstance, error) {
	p, ok := r.prebuilts[strings.TrimSpace(masterID)]
	if !ok {
		return LinkedInstance{}, NotFoundError{Kind: "prebuilt", ID: masterID}
	}
	li, err := r.instantiate(p)
	if err != nil {
		r.DiscardStyleSources(li.CreatedSources)
		return LinkedInstance{}, err
	}
	return li, nil
}

func (r *Registry) instantiate(p *model.Prebuilt) (LinkedInstance, error) {
	var created []string

	saved := map[string]model.StyleSource{}
	for _, s := range p.StyleSources {
		saved[s.ID] = s
	}

	mapping := map[string]string{}
	for _, sid := range p.Root.StyleIDs() {
		src, ok := saved[sid]
		if !ok {
			if src, ok = r.styles.Get(sid); !ok {
				continue
			}
		}
		if src.Kind == model.StyleKindGlobal {
			if existing, ok := r.styles.FindByNameKind(src.Name, model.StyleKindGlobal); ok {
				if existing.ID != sid {
					mapping[sid] = existing.ID
				}
				continue
			}
		}
		newID := r.styles.CreateStyleSource(src.Kind, src.Name)
		created = append(created, newID)
		if err := copyDeclarations(r.styles, newID, src); err != nil {
			return LinkedInstance{CreatedSources: created}, err
		}
		mapping[sid] = newID
	}

	minted := map[string]bool{}
	taken := func(id string) bool { return minted[id] || r.HasInstanceID(id) }
	inst := p.Root.Clone()
	inst.Walk(func(x *model.Instance) bool {
		x.ID = ids.NewUnique(ids.PrefixInstance, taken)
		minted[x.ID] = true
		for i, sid := range x.StyleSourceIDs {
			if to, ok := mapping[sid]; ok {
				x.StyleSourceIDs[i] = to
			}
		}
		return true
	})
	return LinkedInstance{Instance: inst, StyleIDMapping: mapping, CreatedSources: created}, nil
}

// DiscardStyleSources deletes sources forked for a clone that was never inserted.
func (r *Registry) DiscardStyleSources(sourceIDs []string) {
	for _, id := range sourceIDs {
		r.styles.DeleteStyleSource(id)
	}
}

func copyDeclarations(reg *styles.Registry, dstID string, src model.StyleSource) error {
	for bp, states := range src.Values {
		for st, decls := range states {
			if err := reg.SetDeclarations(dstID, decls, bp, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncMasterToPrebuilt writes the current subtree of a master instance (structure,
// props and the current declarations of its style sources) back into its prebuilt.
// Existing linked instances are left alone; only future instantiations see the change.
func (r *Registry) SyncMasterToPrebuilt(instanceID string, t Tree) error {
	instanceID = strings.TrimSpace(instanceID)
	l, ok := r.visible(instanceID)
	if !ok {
		return NotFoundError{Kind: "link", ID: instanceID}
	}
	if !l.IsMaster {
		return fmt.Errorf("%w: %s", ErrNotMaster, instanceID)
	}
	p, ok := r.prebuilts[l.MasterID]
	if !ok {
		return NotFoundError{Kind: "prebuilt", ID: l.MasterID}
	}
	inst, ok := t.FindInstance(instanceID)
	if !ok {
		return NotFoundError{Kind: "instance", ID: instanceID}
	}
	p.Root = inst.Clone()
	p.StyleSources = r.snapshotSources(inst)
	p.UpdatedAt = r.now()
	return nil
}

// MasterRootFor returns the nearest master-linked instance at or above id.
func (r *Registry) MasterRootFor(id string, t Tree) (string, bool) {
	chain := append([]string{id}, t.Ancestors(id)...)
	for _, x := range chain {
		if l, ok := r.visible(x); ok && l.IsMaster {
			return x, true
		}
	}
	return "", false
}

// HandleUpdate is the follow-up effect of an instance edit: when the edited node belongs
// to a master instance, that master is synced into its prebuilt. It returns the synced
// master id, or "" when nothing was synced.
func (r *Registry) HandleUpdate(id string, t Tree) (string, error) {
	masterID, ok := r.MasterRootFor(id, t)
	if !ok {
		return "", nil
	}
	if err := r.SyncMasterToPrebuilt(masterID, t); err != nil {
		return "", err
	}
	return masterID, nil
}

// MastersUsingSource returns the master instances whose subtree references sourceID.
func (r *Registry) MastersUsingSource(sourceID string, t Tree) []string {
	out := []string{}
	for _, l := range r.Links() {
		if !l.IsMaster {
			continue
		}
		inst, ok := t.FindInstance(l.InstanceID)
		if !ok {
			continue
		}
		for _, sid := range inst.StyleIDs() {
			if sid == sourceID {
				out = append(out, l.InstanceID)
				break
			}
		}
	}
	return out
}

// Restore replaces all prebuilts and link records. Records of instances outside the
// restored tree stay hidden until undo or redo brings the instance back.
func (r *Registry) Restore(prebuilts []model.Prebuilt, links []model.InstanceLink) error {
	pm := map[string]*model.Prebuilt{}
	order := []string{}
	for _, p := range prebuilts {
		if strings.TrimSpace(p.ID) == "" {
			return errors.New("prebuilt id is empty")
		}
		if _, ok := pm[p.ID]; ok {
			return fmt.Errorf("duplicate prebuilt id: %s", p.ID)
		}
		cp := p.Clone()
		pm[p.ID] = &cp
		order = append(order, p.ID)
	}
	lm := map[string]*model.InstanceLink{}
	for _, l := range links {
		if l.InstanceID == model.RootID {
			return ErrRootLink
		}
		if _, ok := pm[l.MasterID]; !ok {
			return NotFoundError{Kind: "prebuilt", ID: l.MasterID}
		}
		cp := l.Clone()
		lm[l.InstanceID] = &cp
	}
	r.prebuilts = pm
	r.prebuiltOrder = order
	r.links = lm
	return nil
}
