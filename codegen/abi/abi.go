// Package abi describes the object layouts and calling convention the code
// generator targets (spec.md §4.10, "Object layouts" and "ABI"). It owns the
// type-tag registry that assigns every class/enum declaration a stable
// numeric id, referenced by deep-copy and GC scanning, and the per-kind slot
// layout used by codegen/ir to size allocations.
//
// Go-native realization: SPEC_FULL.md §0. There is no real ISA backend here;
// Layout and Tag are the compiler's model of what an ISA backend would need,
// kept deterministic and inspectable instead of being baked into machine
// code.
package abi

import (
	"fmt"
	"sort"

	"github.com/plutolang/pluto/ast"
)

// WordSize is the pointer/word width this ABI assumes (spec.md §4.10: "all
// heap references are pointer-width").
const WordSize = 8

// Kind classifies a heap object's layout family.
type Kind int

const (
	KindClass Kind = iota
	KindError
	KindEnum
	KindArray
	KindMap
	KindSet
	KindString
	KindStringSlice
	KindTask
	KindChannel
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindError:
		return "error"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindString:
		return "string"
	case KindStringSlice:
		return "string_slice"
	case KindTask:
		return "task"
	case KindChannel:
		return "channel"
	case KindClosure:
		return "closure"
	default:
		return "unknown"
	}
}

// Fixed slot counts for the fixed-shape handle kinds (spec.md §4.10).
const (
	TaskSlots    = 7
	ChannelSlots = 7
)

// Slot describes one scanned or unscanned field within an object's layout.
type Slot struct {
	Name    string
	Scanned bool // true if GC must follow this slot as a pointer
}

// Layout is the concrete slot sequence for one class or error instance:
// injected bracket-deps first, then declared fields, matching declaration
// order (spec.md §4.10, "Class instance").
type Layout struct {
	Tag    Tag
	Kind   Kind
	Name   string
	Slots  []Slot
}

// Size returns the instance size in bytes for a fixed-shape layout. Variable
// payload areas (enum variant max, array/map/set buffers) are sized by
// codegen/ir at allocation time and are not reflected here.
func (l Layout) Size() int { return len(l.Slots) * WordSize }

// Tag is the stable numeric type-id assigned to a class, error, or enum
// declaration. It is what transform/spawn's placeholder type-tag strings
// (e.g. "class:Item") are resolved against once codegen runs; the registry
// is the single source of truth spec.md leaves "implementation-defined".
type Tag uint32

// Registry assigns and looks up Tags, and builds the Layout for every
// class/error/enum declaration in a Program. One Registry is built per
// compilation; Tags are stable within it but not guaranteed stable across
// separate compilations of the same source (no persisted tag table exists
// in phase 1).
type Registry struct {
	byDeclID map[ast.ID]Tag
	layouts  map[Tag]Layout
	next     Tag
}

// NewRegistry builds a Registry by walking every class, error, and enum
// declaration in prog, assigning tags in a deterministic order (classes,
// then errors, then enums, each sorted by declaration name) so two
// compilations of unchanged source produce an identical tag table.
func NewRegistry(prog *ast.Program) *Registry {
	r := &Registry{byDeclID: map[ast.ID]Tag{}, layouts: map[Tag]Layout{}}

	classes := append([]*ast.ClassDecl(nil), prog.Classes...)
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	for _, c := range classes {
		r.assignClass(c)
	}

	errs := append([]*ast.ErrorDecl(nil), prog.Errors...)
	sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
	for _, e := range errs {
		r.assignError(e)
	}

	enums := append([]*ast.EnumDecl(nil), prog.Enums...)
	sort.Slice(enums, func(i, j int) bool { return enums[i].Name < enums[j].Name })
	for _, e := range enums {
		r.assignEnum(e)
	}

	return r
}

func (r *Registry) assignClass(c *ast.ClassDecl) {
	slots := make([]Slot, 0, len(c.BracketDeps)+len(c.Fields))
	for _, d := range c.BracketDeps {
		slots = append(slots, Slot{Name: d.Name, Scanned: true})
	}
	for _, f := range c.Fields {
		slots = append(slots, Slot{Name: f.Name, Scanned: isScanned(f.Type)})
	}
	tag := r.next
	r.next++
	r.byDeclID[c.ID] = tag
	r.layouts[tag] = Layout{Tag: tag, Kind: KindClass, Name: c.Name, Slots: slots}
}

func (r *Registry) assignError(e *ast.ErrorDecl) {
	slots := make([]Slot, len(e.Fields))
	for i, f := range e.Fields {
		slots[i] = Slot{Name: f.Name, Scanned: isScanned(f.Type)}
	}
	tag := r.next
	r.next++
	r.byDeclID[e.ID] = tag
	r.layouts[tag] = Layout{Tag: tag, Kind: KindError, Name: e.Name, Slots: slots}
}

func (r *Registry) assignEnum(e *ast.EnumDecl) {
	// Discriminant word plus the largest variant's field slots (spec.md
	// §4.10, "Enum: a tagged union").
	maxFields := 0
	for _, v := range e.Variants {
		if len(v.Fields) > maxFields {
			maxFields = len(v.Fields)
		}
	}
	slots := make([]Slot, 0, 1+maxFields)
	slots = append(slots, Slot{Name: "discriminant"})
	for i := 0; i < maxFields; i++ {
		slots = append(slots, Slot{Name: fmt.Sprintf("payload%d", i), Scanned: true})
	}
	tag := r.next
	r.next++
	r.byDeclID[e.ID] = tag
	r.layouts[tag] = Layout{Tag: tag, Kind: KindEnum, Name: e.Name, Slots: slots}
}

// isScanned reports whether a field's static type needs to be followed by
// the garbage collector, i.e. it may hold a heap pointer.
func isScanned(t ast.TypeExpr) bool {
	switch tt := t.(type) {
	case *ast.PrimitiveType, *ast.TypeVar:
		return false
	case *ast.NullableType:
		return isScanned(tt.Elem)
	default:
		return true
	}
}

// TagFor returns the Tag assigned to declID, or (0, false) if declID was
// never registered (not a class/error/enum declaration).
func (r *Registry) TagFor(declID ast.ID) (Tag, bool) {
	t, ok := r.byDeclID[declID]
	return t, ok
}

// Layout returns the Layout registered for tag.
func (r *Registry) Layout(tag Tag) (Layout, bool) {
	l, ok := r.layouts[tag]
	return l, ok
}

// TagString renders tag as the "kind:Name" placeholder string transform/spawn
// emits for a deep-copy call site, resolving it to its final numeric id plus
// a human-readable label for diagnostics.
func (r *Registry) TagString(tag Tag) string {
	l, ok := r.layouts[tag]
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%s", l.Kind, l.Name)
}
