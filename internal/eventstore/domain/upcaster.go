package domain

import (
	"sort"
	"sync"
)

// Upcaster is a read-time transformation that adapts an old-shaped stored
// event into the shape current code expects, without rewriting storage. It
// applies to events of EventType whose version is at least FromVersion.
type Upcaster struct {
	EventType   string
	FromVersion uint
	Transform   func(event StoredEvent) (StoredEvent, error)
}

// UpcasterRegistry holds registered upcasters for the process lifetime.
// Upcasters are applied in ascending FromVersion order, each consuming the
// previous transform's output, so consumers always see the newest event
// shape regardless of when the event was appended.
type UpcasterRegistry struct {
	mu     sync.RWMutex
	byType map[string][]Upcaster
}

// NewUpcasterRegistry creates an empty registry.
func NewUpcasterRegistry() *UpcasterRegistry {
	return &UpcasterRegistry{byType: make(map[string][]Upcaster)}
}

// Register adds an upcaster, keeping the per-type chain sorted by FromVersion.
func (r *UpcasterRegistry) Register(upcaster Upcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := append(r.byType[upcaster.EventType], upcaster)
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].FromVersion < chain[j].FromVersion
	})
	r.byType[upcaster.EventType] = chain
}

// Apply runs every matching upcaster over event in ascending FromVersion
// order. A failing transform stops the chain and returns the error together
// with the last successfully transformed event.
func (r *UpcasterRegistry) Apply(event StoredEvent) (StoredEvent, error) {
	r.mu.RLock()
	chain := r.byType[event.EventType]
	r.mu.RUnlock()

	current := event
	for _, upcaster := range chain {
		if upcaster.FromVersion > event.Version {
			continue
		}
		next, err := upcaster.Transform(current)
		if err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}
