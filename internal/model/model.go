package model

import (
	"fmt"
	"strings"
	"time"
)

// RootID is the reserved id of the tree root. It is never deleted, moved or linked.
const RootID = "root"

const (
	RootType  = "Body"
	RootLabel = "Body"
)

type Instance struct {
	ID             string         `json:"id" yaml:"id"`
	Type           string         `json:"type" yaml:"type"`
	Label          string         `json:"label,omitempty" yaml:"label,omitempty"`
	Props          map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
	StyleSourceIDs []string       `json:"styleSourceIds,omitempty" yaml:"styleSourceIds,omitempty"`
	Children       []Instance     `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewRoot returns an empty tree root.
func NewRoot() Instance {
	return Instance{ID: RootID, Type: RootType, Label: RootLabel}
}

// Clone returns a deep copy of the instance and its subtree.
func (in Instance) Clone() Instance {
	out := Instance{
		ID:    in.ID,
		Type:  in.Type,
		Label: in.Label,
		Props: CloneProps(in.Props),
	}
	if in.StyleSourceIDs != nil {
		out.StyleSourceIDs = append([]string{}, in.StyleSourceIDs...)
	}
	if in.Children != nil {
		out.Children = make([]Instance, len(in.Children))
		for i := range in.Children {
			out.Children[i] = in.Children[i].Clone()
		}
	}
	return out
}

// Count returns the number of nodes in the subtree, including the instance itself.
func (in Instance) Count() int {
	n := 1
	for _, ch := range in.Children {
		n += ch.Count()
	}
	return n
}

// Walk visits the subtree depth-first, parents before children. Returning false from fn
// stops the walk.
func (in *Instance) Walk(fn func(inst *Instance) bool) bool {
	if !fn(in) {
		return false
	}
	for i := range in.Children {
		if !in.Children[i].Walk(fn) {
			return false
		}
	}
	return true
}

// IDs returns every id in the subtree in depth-first order.
func (in Instance) IDs() []string {
	out := []string{}
	in.Walk(func(x *Instance) bool {
		out = append(out, x.ID)
		return true
	})
	return out
}

// StyleIDs returns the distinct style source ids referenced anywhere in the subtree,
// in first-seen order.
func (in Instance) StyleIDs() []string {
	seen := map[string]bool{}
	out := []string{}
	in.Walk(func(x *Instance) bool {
		for _, id := range x.StyleSourceIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		return true
	})
	return out
}

func CloneProps(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneProps(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}

type Breakpoint string

const (
	BreakpointBase   Breakpoint = "base"
	BreakpointTablet Breakpoint = "tablet"
	BreakpointMobile Breakpoint = "mobile"
)

func Breakpoints() []Breakpoint {
	return []Breakpoint{BreakpointBase, BreakpointTablet, BreakpointMobile}
}

func ParseBreakpoint(s string) (Breakpoint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base", "desktop":
		return BreakpointBase, nil
	case "tablet":
		return BreakpointTablet, nil
	case "mobile":
		return BreakpointMobile, nil
	default:
		return "", fmt.Errorf("invalid breakpoint: %q (expected base|tablet|mobile)", s)
	}
}

// State is an interaction (pseudo) state.
type State string

const (
	StateDefault      State = "default"
	StateHover        State = "hover"
	StateFocus        State = "focus"
	StateActive       State = "active"
	StateVisited      State = "visited"
	StateFocusVisible State = "focus-visible"
	StateFocusWithin  State = "focus-within"
	StateDisabled     State = "disabled"
)

func States() []State {
	return []State{StateDefault, StateHover, StateFocus, StateActive, StateVisited, StateFocusVisible, StateFocusWithin, StateDisabled}
}

func ParseState(s string) (State, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, ":")
	if v == "" || v == "none" {
		return StateDefault, nil
	}
	for _, st := range States() {
		if string(st) == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid state: %q", s)
}

type StyleKind string

const (
	// StyleKindLocal is a named class owned by the component that uses it.
	StyleKindLocal StyleKind = "local"
	// StyleKindGlobal is a shared source; linked instantiation reuses it by name.
	StyleKindGlobal StyleKind = "global"
)

func ParseStyleKind(s string) (StyleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return StyleKindLocal, nil
	case "global", "token":
		return StyleKindGlobal, nil
	default:
		return "", fmt.Errorf("invalid style kind: %q (expected local|global)", s)
	}
}

// Declarations maps a CSS-like property to its value.
type Declarations map[string]string

func (d Declarations) Clone() Declarations {
	if d == nil {
		return nil
	}
	out := make(Declarations, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

type StyleSource struct {
	ID     string                                `json:"id" yaml:"id"`
	Name   string                                `json:"name" yaml:"name"`
	Kind   StyleKind                             `json:"kind" yaml:"kind"`
	Values map[Breakpoint]map[State]Declarations `json:"values,omitempty" yaml:"values,omitempty"`
}

func (s StyleSource) Clone() StyleSource {
	out := StyleSource{ID: s.ID, Name: s.Name, Kind: s.Kind}
	if s.Values != nil {
		out.Values = make(map[Breakpoint]map[State]Declarations, len(s.Values))
		for bp, states := range s.Values {
			m := make(map[State]Declarations, len(states))
			for st, decls := range states {
				m[st] = decls.Clone()
			}
			out.Values[bp] = m
		}
	}
	return out
}

// Declarations returns the declarations at (bp, state), or nil.
func (s StyleSource) Declarations(bp Breakpoint, state State) Declarations {
	if s.Values == nil {
		return nil
	}
	return s.Values[bp][state]
}

// Prebuilt is a master definition: a standalone subtree saved outside any live tree.
type Prebuilt struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Category     string        `json:"category,omitempty" yaml:"category,omitempty"`
	Root         Instance      `json:"root" yaml:"root"`
	StyleSources []StyleSource `json:"styleSources,omitempty" yaml:"styleSources,omitempty"`
	CreatedAt    time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

func (p Prebuilt) Clone() Prebuilt {
	out := p
	out.Root = p.Root.Clone()
	out.StyleSources = nil
	for _, s := range p.StyleSources {
		out.StyleSources = append(out.StyleSources, s.Clone())
	}
	return out
}

type InstanceLink struct {
	InstanceID     string            `json:"instanceId" yaml:"instanceId"`
	MasterID       string            `json:"masterId" yaml:"masterId"`
	StyleIDMapping map[string]string `json:"styleIdMapping,omitempty" yaml:"styleIdMapping,omitempty"`
	IsMaster       bool              `json:"isMaster" yaml:"isMaster"`
}

func (l InstanceLink) Clone() InstanceLink {
	out := l
	if l.StyleIDMapping != nil {
		out.StyleIDMapping = make(map[string]string, len(l.StyleIDMapping))
		for k, v := range l.StyleIDMapping {
			out.StyleIDMapping[k] = v
		}
	}
	return out
}

type HistoryState struct {
	Capacity  int        `json:"capacity" yaml:"capacity"`
	Index     int        `json:"index" yaml:"index"`
	Snapshots []Instance `json:"snapshots" yaml:"snapshots"`
}

// Document is the plain nested-object form of an editing session.
type Document struct {
	Version      int            `json:"version" yaml:"version"`
	ID           string         `json:"id" yaml:"id"`
	Root         Instance       `json:"root" yaml:"root"`
	StyleSources []StyleSource  `json:"styleSources" yaml:"styleSources"`
	Prebuilts    []Prebuilt     `json:"prebuilts" yaml:"prebuilts"`
	Links        []InstanceLink `json:"links" yaml:"links"`
	SelectedID   string         `json:"selectedId,omitempty" yaml:"selectedId,omitempty"`
	IsolatedID   string         `json:"isolatedId,omitempty" yaml:"isolatedId,omitempty"`
	EditingState State          `json:"editingState,omitempty" yaml:"editingState,omitempty"`
	History      *HistoryState  `json:"history,omitempty" yaml:"history,omitempty"`
	Clipboard    *Instance      `json:"clipboard,omitempty" yaml:"clipboard,omitempty"`
	// ClipboardLinks are the link records captured with the clipboard entry.
	ClipboardLinks []InstanceLink `json:"clipboardLinks,omitempty" yaml:"clipboardLinks,omitempty"`
}

type Event struct {
	ID       string    `json:"id"`
	TS       time.Time `json:"ts"`
	Type     string    `json:"type"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload"`
}
