package synthetic

import (
	"math/rand/v2"
	"sync"

	"mercator-hq/tollgate/pkg/traffic"
)

// DefaultRegistrySize is the number of plates remembered for reuse.
const DefaultRegistrySize = 1000

// Owner is what the registry remembers about a plate.
type Owner struct {
	Plate string
	Type  traffic.VehicleType
	Seen  int
}

// Registry remembers recently seen plates. Once full, the oldest plate is
// evicted. It is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	size  int
	ring  []string
	next  int
	byKey map[string]*Owner
}

// NewRegistry creates a registry holding at most size plates.
func NewRegistry(size int) *Registry {
	if size < 1 {
		size = DefaultRegistrySize
	}
	return &Registry{
		size:  size,
		ring:  make([]string, 0, size),
		byKey: make(map[string]*Owner, size),
	}
}

// Observe records a sighting of plate. A new plate may evict the oldest one.
func (r *Registry) Observe(plate string, vt traffic.VehicleType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.byKey[plate]; ok {
		o.Seen++
		return
	}

	if len(r.ring) < r.size {
		r.ring = append(r.ring, plate)
	} else {
		delete(r.byKey, r.ring[r.next])
		r.ring[r.next] = plate
		r.next = (r.next + 1) % r.size
	}
	r.byKey[plate] = &Owner{Plate: plate, Type: vt, Seen: 1}
}

// Pick returns a random remembered plate, or false when the registry is empty.
func (r *Registry) Pick(rng *rand.Rand) (Owner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ring) == 0 {
		return Owner{}, false
	}
	return *r.byKey[r.ring[rng.IntN(len(r.ring))]], true
}

// Lookup returns what is known about plate.
func (r *Registry) Lookup(plate string) (Owner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byKey[plate]
	if !ok {
		return Owner{}, false
	}
	return *o, true
}

// Len returns the number of remembered plates.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ring)
}
