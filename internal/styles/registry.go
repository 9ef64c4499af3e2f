package styles

import (
	"errors"
	"fmt"
	"strings"

	"pagecraft/internal/ids"
	"pagecraft/internal/model"
)

var (
	ErrSourceExists  = errors.New("style source already exists")
	ErrEmptyName     = errors.New("style source name is empty")
	ErrEmptyProperty = errors.New("style property is empty")
)

type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("style source not found: %s", e.ID)
}

// Registry owns every style source of a document. Sources are shared: many instances may
// reference the same id, so any change here is visible to all of them.
type Registry struct {
	byID  map[string]*model.StyleSource
	order []string
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]*model.StyleSource{}}
}

// CreateStyleSource allocates a new source and returns its id.
func (r *Registry) CreateStyleSource(kind model.StyleKind, name string) string {
	id := ids.NewUnique(ids.PrefixStyle, func(id string) bool {
		_, ok := r.byID[id]
		return ok
	})
	if strings.TrimSpace(name) == "" {
		name = id
	}
	r.insert(model.StyleSource{ID: id, Name: strings.TrimSpace(name), Kind: normalizeKind(kind)})
	return id
}

// CreateStyleSourceWithID registers a source under a caller-minted id.
func (r *Registry) CreateStyleSourceWithID(id string, kind model.StyleKind, name string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("style source id is empty")
	}
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	r.insert(model.StyleSource{ID: id, Name: name, Kind: normalizeKind(kind)})
	return nil
}

func (r *Registry) insert(src model.StyleSource) {
	cp := src.Clone()
	r.byID[src.ID] = &cp
	r.order = append(r.order, src.ID)
}

func normalizeKind(k model.StyleKind) model.StyleKind {
	if k == "" {
		return model.StyleKindLocal
	}
	return k
}

// SetStyle upserts one declaration. An empty breakpoint means base and an empty state
// means default.
func (r *Registry) SetStyle(sourceID, property, value string, bp model.Breakpoint, state model.State) error {
	src, ok := r.byID[sourceID]
	if !ok {
		return NotFoundError{ID: sourceID}
	}
	property = strings.TrimSpace(property)
	if property == "" {
		return ErrEmptyProperty
	}
	if bp == "" {
		bp = model.BreakpointBase
	}
	if state == "" {
		state = model.StateDefault
	}
	if src.Values == nil {
		src.Values = map[model.Breakpoint]map[model.State]model.Declarations{}
	}
	if src.Values[bp] == nil {
		src.Values[bp] = map[model.State]model.Declarations{}
	}
	if src.Values[bp][state] == nil {
		src.Values[bp][state] = model.Declarations{}
	}
	src.Values[bp][state][property] = value
	return nil
}

// SetDeclarations upserts every declaration of decls at (bp, state). Nothing is written
// unless every property is valid.
func (r *Registry) SetDeclarations(sourceID string, decls map[string]string, bp model.Breakpoint, state model.State) error {
	if !r.Has(sourceID) {
		return NotFoundError{ID: sourceID}
	}
	if err := CheckDeclarations(decls); err != nil {
		return err
	}
	for prop, val := range decls {
		if err := r.SetStyle(sourceID, prop, val, bp, state); err != nil {
			return err
		}
	}
	return nil
}

// CheckDeclarations rejects empty or whitespace-only property names.
func CheckDeclarations(decls map[string]string) error {
	for prop := range decls {
		if strings.TrimSpace(prop) == "" {
			return ErrEmptyProperty
		}
	}
	return nil
}

// RemoveStyle deletes one declaration. It reports whether anything was removed.
func (r *Registry) RemoveStyle(sourceID, property string, bp model.Breakpoint, state model.State) bool {
	src, ok := r.byID[sourceID]
	if !ok || src.Values == nil {
		return false
	}
	if bp == "" {
		bp = model.BreakpointBase
	}
	if state == "" {
		state = model.StateDefault
	}
	decls := src.Values[bp][state]
	if _, ok := decls[property]; !ok {
		return false
	}
	delete(decls, property)
	if len(decls) == 0 {
		delete(src.Values[bp], state)
	}
	if len(src.Values[bp]) == 0 {
		delete(src.Values, bp)
	}
	return true
}

// DeleteStyleSource removes the source. Instances still referencing it resolve as if the
// id were absent.
func (r *Registry) DeleteStyleSource(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, x := range r.order {
		if x == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Rename(id, name string) error {
	src, ok := r.byID[id]
	if !ok {
		return NotFoundError{ID: id}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	src.Name = name
	return nil
}

// Get returns a copy of the source.
func (r *Registry) Get(id string) (model.StyleSource, bool) {
	src, ok := r.byID[id]
	if !ok {
		return model.StyleSource{}, false
	}
	return src.Clone(), true
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// FindByNameKind returns the oldest source with the given name and kind.
func (r *Registry) FindByNameKind(name string, kind model.StyleKind) (model.StyleSource, bool) {
	kind = normalizeKind(kind)
	for _, id := range r.order {
		src := r.byID[id]
		if src.Name == name && src.Kind == kind {
			return src.Clone(), true
		}
	}
	return model.StyleSource{}, false
}

// Sources returns copies of every source in creation order.
func (r *Registry) Sources() []model.StyleSource {
	out := make([]model.StyleSource, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// Restore replaces the registry contents, keeping the given order.
func (r *Registry) Restore(sources []model.StyleSource) error {
	byID := make(map[string]*model.StyleSource, len(sources))
	order := make([]string, 0, len(sources))
	for _, s := range sources {
		if strings.TrimSpace(s.ID) == "" {
			return errors.New("style source id is empty")
		}
		if _, ok := byID[s.ID]; ok {
			return fmt.Errorf("%w: %s", ErrSourceExists, s.ID)
		}
		cp := s.Clone()
		cp.Kind = normalizeKind(cp.Kind)
		byID[s.ID] = &cp
		order = append(order, s.ID)
	}
	r.byID = byID
	r.order = order
	return nil
}
