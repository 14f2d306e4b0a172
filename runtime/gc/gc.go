// Package gc models the native runtime's conservative, non-moving
// mark-and-sweep collector (spec.md §4.11): a singly-linked object list, an
// interval index for locating the header enclosing any possibly-interior
// pointer, threshold-doubling collection triggers, and phase-1 suppression
// while any task is active.
//
// No teacher or example repo models a garbage collector (the corpus is
// entirely GC-hosted Go code), so this package has no structural grounding
// beyond spec.md §4.11 itself; its only third-party-library question is
// synchronization primitives, for which the standard library's sync/atomic
// is the idiomatic choice the whole corpus already uses for counters. The
// active-task gauge and GC-cycle counter it reports through
// internal/telemetry are grounded the same way as every other pass: the
// teacher's runtime/agent/telemetry Metrics facade (SPEC_FULL.md §1.1).
package gc

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/plutolang/pluto/internal/telemetry"
	"github.com/plutolang/pluto/runtime"
)

// Tag identifies a heap object's runtime shape (spec.md §4, "type tag in
// {object, string, array, trait-object, map, set, reserved, task, bytes,
// channel, string-slice}").
type Tag int

const (
	TagObject Tag = iota
	TagString
	TagArray
	TagTraitObject
	TagMap
	TagSet
	TagReserved
	TagTask
	TagBytes
	TagChannel
	TagStringSlice
)

// Header is the 16-byte-equivalent per-object metadata spec.md describes:
// successor pointer (modeled here as the object's position in Heap.objects),
// size, mark bit, type tag, and scannable field count.
type Header struct {
	Size       uintptr
	Tag        Tag
	FieldCount int
	marked     atomic.Bool
}

// Object is one heap allocation. Fields holds this object's scannable
// children (spec.md §4.11, "Mark": arrays scan count slots, maps/sets scan
// keys/values, channels scan buffered slots, tasks scan closure/result/error).
type Object struct {
	Header Header
	Fields []*Object
	base   uintptr
	end    uintptr
}

// RootProvider returns the set of objects currently reachable from one root
// source (a registered thread/fiber stack, a static data area, TLS slots).
// Heap.Collect calls every registered provider at the start of each cycle.
type RootProvider func() []*Object

type intervalEntry struct {
	base, end uintptr
	obj       *Object
}

// Heap is one program's GC-managed object space.
type Heap struct {
	cfg runtime.Config

	mu           sync.Mutex
	objects      []*Object
	interval     []intervalEntry
	nextAddr     uintptr
	bytesAlloc   uint64
	threshold    uint64
	totalBytes   uint64
	roots        []RootProvider
	activeTasks  atomic.Int64

	metrics telemetry.Metrics
}

// Option configures optional Heap behavior, following the same
// functional-option shape as runtime.Config's WithGCThreshold family
// (SPEC_FULL.md §1.3).
type Option func(*Heap)

// WithMetrics reports the active-task gauge and GC-cycle counter named in
// SPEC_FULL.md §1.1 through m. Without it, Heap still works but emits
// nothing.
func WithMetrics(m telemetry.Metrics) Option {
	return func(h *Heap) { h.metrics = m }
}

// New returns an empty Heap configured from cfg's GC fields.
func New(cfg runtime.Config, opts ...Option) *Heap {
	h := &Heap{
		cfg:       cfg,
		threshold: cfg.GCInitialThreshold,
		nextAddr:  1,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoot adds a root provider, e.g. a thread stack scanner registered
// at task start and removed at task completion (spec.md §4.11, "Roots").
func (h *Heap) RegisterRoot(p RootProvider) {
	h.mu.Lock()
	h.roots = append(h.roots, p)
	h.mu.Unlock()
}

// TaskStarted increments the active-task counter (spec.md §4.11,
// "Concurrency discipline"). Call once per spawned task before it runs.
func (h *Heap) TaskStarted() {
	n := h.activeTasks.Add(1)
	h.recordActiveTasks(n)
}

// TaskFinished decrements the active-task counter.
func (h *Heap) TaskFinished() {
	n := h.activeTasks.Add(-1)
	h.recordActiveTasks(n)
}

func (h *Heap) recordActiveTasks(n int64) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordGauge(context.Background(), "active_tasks", float64(n))
}

// ActiveTasks reports the current active-task count.
func (h *Heap) ActiveTasks() int64 { return h.activeTasks.Load() }

// Alloc registers a new heap object of the given tag, size, and scannable
// fields, and triggers a collection if the allocation threshold has been
// exceeded and no task is active (spec.md §4.11, "Threshold" and
// "Suppression rule"). It returns a *runtime.Fault if the hard cap is
// exceeded even after a collection.
func (h *Heap) Alloc(tag Tag, size uintptr, fields []*Object) (*Object, error) {
	h.mu.Lock()
	base := h.nextAddr
	h.nextAddr += size
	obj := &Object{
		Header: Header{Size: size, Tag: tag, FieldCount: len(fields)},
		Fields: fields,
		base:   base,
		end:    base + size,
	}
	h.objects = append(h.objects, obj)
	h.interval = append(h.interval, intervalEntry{base: base, end: obj.end, obj: obj})
	h.bytesAlloc += uint64(size)
	h.totalBytes += uint64(size)
	needCollect := h.bytesAlloc >= h.threshold
	overHardCap := h.totalBytes > h.cfg.GCHardCap
	h.mu.Unlock()

	if overHardCap {
		return nil, runtime.NewFault("gc.hard_cap", "heap size %d bytes exceeds hard cap %d", h.totalBytes, h.cfg.GCHardCap)
	}
	if needCollect && h.activeTasks.Load() == 0 {
		h.Collect()
	}
	return obj, nil
}

// Lookup finds the header enclosing addr via the sorted interval index
// (spec.md §4.11, "O(log n) lookup of the header enclosing any possibly-
// interior pointer").
func (h *Heap) Lookup(addr uintptr) (*Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !sort.SliceIsSorted(h.interval, func(i, j int) bool { return h.interval[i].base < h.interval[j].base }) {
		sort.Slice(h.interval, func(i, j int) bool { return h.interval[i].base < h.interval[j].base })
	}
	i := sort.Search(len(h.interval), func(i int) bool { return h.interval[i].end > addr })
	if i < len(h.interval) && h.interval[i].base <= addr && addr < h.interval[i].end {
		return h.interval[i].obj, true
	}
	return nil, false
}

// Collect runs one stop-the-world mark-and-sweep cycle (spec.md §4.11,
// "Mark" / "Sweep"). It is unconditional: callers wanting the phase-1
// suppression rule should check ActiveTasks() == 0 first, as Alloc does
// internally.
func (h *Heap) Collect() {
	h.mu.Lock()
	roots := append([]RootProvider(nil), h.roots...)
	h.mu.Unlock()

	var worklist []*Object
	seen := make(map[*Object]bool)
	for _, rp := range roots {
		for _, obj := range rp() {
			if obj != nil && !seen[obj] {
				seen[obj] = true
				worklist = append(worklist, obj)
			}
		}
	}
	for len(worklist) > 0 {
		obj := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		obj.Header.marked.Store(true)
		for _, child := range obj.Fields {
			if child != nil && !seen[child] {
				seen[child] = true
				worklist = append(worklist, child)
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	live := h.objects[:0]
	liveInterval := h.interval[:0]
	var freedBytes uint64
	for _, obj := range h.objects {
		if obj.Header.marked.Load() {
			obj.Header.marked.Store(false) // reset for next cycle
			live = append(live, obj)
			liveInterval = append(liveInterval, intervalEntry{base: obj.base, end: obj.end, obj: obj})
		} else {
			freedBytes += uint64(obj.Header.Size)
		}
	}
	h.objects = live
	h.interval = liveInterval
	h.totalBytes -= freedBytes
	h.bytesAlloc = 0
	h.threshold *= 2

	if h.metrics != nil {
		h.metrics.IncCounter(context.Background(), "gc.cycles")
	}
}

// HeapSize reports the current live-object byte total.
func (h *Heap) HeapSize() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes
}

// ObjectCount reports the number of live objects.
func (h *Heap) ObjectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}
