// Package labelmap builds lookup-optimized projections of a ValueLabelSet
// (§3) and shares them across parallel decode workers by cheap refcount.
package labelmap

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// KeyKind discriminates a ValueLabelSet entry's key representation.
type KeyKind uint8

const (
	KeyInt32 KeyKind = iota
	KeyFloatBits
	KeyString
)

// Entry is one (key, label) pair of a ValueLabelSet (§3). Exactly one of
// IntKey/BitsKey/StrKey is meaningful, selected by Kind.
type Entry struct {
	Kind    KeyKind
	IntKey  int32
	BitsKey uint64 // IEEE-754 bit pattern, compared exactly, never as float64
	StrKey  string
	Label   string
}

// Set is the on-disk-shaped value-label table: a name plus its ordered
// entries, as captured by a format's metadata parser.
type Set struct {
	Name    string
	Entries []Entry
}

// Map is the lookup-optimized projection of a Set: three disjoint maps
// keyed by the entry's native representation, so a hot-path lookup never
// has to branch on whether a numeric key is compared as float or int.
//
// Map is built once and is read-only thereafter; callers share a *Map
// across goroutines without locking. Acquire/Release maintain a refcount
// of the holders; nothing evicts a Map when the count reaches zero.
type Map struct {
	Name string

	byInt    map[int32]string
	byBits   map[uint64]string
	byString map[string]string

	refCount int32
}

// Build projects a Set into a Map. Later entries win on key collision,
// matching the file's own declared entry order.
func Build(set Set) *Map {
	m := &Map{Name: set.Name}

	for _, e := range set.Entries {
		switch e.Kind {
		case KeyInt32:
			if m.byInt == nil {
				m.byInt = make(map[int32]string, len(set.Entries))
			}
			m.byInt[e.IntKey] = e.Label
		case KeyFloatBits:
			if m.byBits == nil {
				m.byBits = make(map[uint64]string, len(set.Entries))
			}
			m.byBits[e.BitsKey] = e.Label
		case KeyString:
			if m.byString == nil {
				m.byString = make(map[string]string, len(set.Entries))
			}
			m.byString[e.StrKey] = e.Label
		}
	}

	return m
}

// LookupInt returns the label for an integer key.
func (m *Map) LookupInt(key int32) (string, bool) {
	label, ok := m.byInt[key]

	return label, ok
}

// LookupFloat returns the label for a float64 key, compared by exact bit
// pattern per §3 ("value-label keys are compared by exact integer or by
// f64 bit pattern").
func (m *Map) LookupFloat(key float64) (string, bool) {
	label, ok := m.byBits[math.Float64bits(key)]

	return label, ok
}

// LookupBits is LookupFloat for a caller that already holds the raw bits
// (e.g. a row decoder that never reconstitutes the float itself).
func (m *Map) LookupBits(bits uint64) (string, bool) {
	label, ok := m.byBits[bits]

	return label, ok
}

// LookupString returns the label for a string key.
func (m *Map) LookupString(key string) (string, bool) {
	label, ok := m.byString[key]

	return label, ok
}

// Acquire increments the refcount and returns the receiver, so callers can
// write `plan.Labels = labelMap.Acquire()`.
func (m *Map) Acquire() *Map {
	atomic.AddInt32(&m.refCount, 1)

	return m
}

// Release decrements the refcount. A Cache keeps every Map it has built
// for its own lifetime, whatever the count.
func (m *Map) Release() {
	atomic.AddInt32(&m.refCount, -1)
}

// RefCount reports the current refcount, chiefly for tests.
func (m *Map) RefCount() int32 {
	return atomic.LoadInt32(&m.refCount)
}

// Cache lazily builds and shares Maps keyed by value-label-set name, per
// §3's "built lazily the first time labels are requested and shared by
// cheap refcount across workers." One Cache is owned per open file and
// handed to every parallel decode worker by reference; Get is safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*Map
	sets    map[uint64]Set
}

// NewCache indexes the given sets by name so Get can build lazily.
func NewCache(sets []Set) *Cache {
	c := &Cache{
		entries: make(map[uint64]*Map, len(sets)),
		sets:    make(map[uint64]Set, len(sets)),
	}
	for _, s := range sets {
		c.sets[cacheKey(s.Name)] = s
	}

	return c
}

func cacheKey(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Get returns the shared Map for the named value-label set, building it
// on first request. The second return is false when no set with that
// name was registered at cache construction.
func (c *Cache) Get(name string) (*Map, bool) {
	key := cacheKey(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.entries[key]; ok {
		return m, true
	}

	set, ok := c.sets[key]
	if !ok {
		return nil, false
	}

	m := Build(set)
	c.entries[key] = m

	return m, true
}
