package pipeline

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/traffic"
)

// StatusBoard holds the live state of every worker slot.
//
// Each update replaces one whole slot value under the write lock, so a
// reader never sees a slot with a state from one update and an occupant
// from another.
type StatusBoard struct {
	mu    sync.RWMutex
	slots []traffic.WorkerSlot
	now   func() time.Time
}

// NewStatusBoard creates a board with n idle slots.
func NewStatusBoard(n int) *StatusBoard {
	b := &StatusBoard{
		slots: make([]traffic.WorkerSlot, n),
		now:   time.Now,
	}
	start := b.now()
	for i := range b.slots {
		b.slots[i] = traffic.WorkerSlot{WorkerID: i, State: traffic.SlotIdle, Since: start}
	}
	return b
}

// Size returns the number of slots.
func (b *StatusBoard) Size() int {
	return len(b.slots)
}

// Occupy moves an idle slot to CHECKING with v as occupant. It fails if
// the transition is invalid or v already occupies another slot.
func (b *StatusBoard) Occupy(worker int, v traffic.Vehicle) (traffic.WorkerSlot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, err := b.slot(worker)
	if err != nil {
		return traffic.WorkerSlot{}, err
	}
	for i := range b.slots {
		if occ := b.slots[i].Occupant; occ != nil && occ.ID == v.ID {
			return traffic.WorkerSlot{}, fmt.Errorf("vehicle %s already occupies worker %d", v.ID, i)
		}
	}

	next := traffic.WorkerSlot{
		WorkerID: worker,
		Occupant: &v,
		State:    traffic.SlotChecking,
		Since:    b.now(),
		Last:     cur.Last,
	}
	return next, b.replace(cur, next)
}

// Verdict moves a CHECKING slot to SAFE or VIOLATION.
func (b *StatusBoard) Verdict(worker int, kind traffic.ViolationKind) (traffic.WorkerSlot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, err := b.slot(worker)
	if err != nil {
		return traffic.WorkerSlot{}, err
	}
	state := traffic.SlotSafe
	if kind.IsViolation() {
		state = traffic.SlotViolation
	}

	next := cur
	next.State = state
	next.Since = b.now()
	if cur.Occupant != nil {
		next.Last = &traffic.SlotVerdict{Vehicle: cur.Occupant.Summarize(), Kind: kind, At: next.Since}
	}
	return next, b.replace(cur, next)
}

// Release returns a slot to IDLE. From CHECKING this releases the slot
// without a verdict.
func (b *StatusBoard) Release(worker int) (traffic.WorkerSlot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, err := b.slot(worker)
	if err != nil {
		return traffic.WorkerSlot{}, err
	}
	next := traffic.WorkerSlot{
		WorkerID: worker,
		State:    traffic.SlotIdle,
		Since:    b.now(),
		Last:     cur.Last,
	}
	return next, b.replace(cur, next)
}

// Slot returns a copy of one slot.
func (b *StatusBoard) Slot(worker int) (traffic.WorkerSlot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, err := b.slot(worker)
	if err != nil {
		return traffic.WorkerSlot{}, err
	}
	return copySlot(s), nil
}

// Snapshot returns a copy of every slot, indexed by worker id.
func (b *StatusBoard) Snapshot() []traffic.WorkerSlot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]traffic.WorkerSlot, len(b.slots))
	for i, s := range b.slots {
		out[i] = copySlot(s)
	}
	return out
}

// SlotView is the display form of a busy slot.
type SlotView struct {
	Vehicle traffic.Summary   `json:"vehicle"`
	State   traffic.SlotState `json:"state"`
	Since   time.Time         `json:"since"`
}

// BoardView is the JSON document served to status pollers. Idle slots
// are null in Workers.
type BoardView struct {
	Workers map[string]*SlotView            `json:"workers"`
	Last    map[string]*traffic.SlotVerdict `json:"last"`
}

// View renders the current snapshot for display.
func (b *StatusBoard) View() BoardView {
	snap := b.Snapshot()
	view := BoardView{
		Workers: make(map[string]*SlotView, len(snap)),
		Last:    make(map[string]*traffic.SlotVerdict, len(snap)),
	}
	for _, s := range snap {
		key := strconv.Itoa(s.WorkerID)
		view.Last[key] = s.Last
		if s.State == traffic.SlotIdle || s.Occupant == nil {
			view.Workers[key] = nil
			continue
		}
		view.Workers[key] = &SlotView{
			Vehicle: s.Occupant.Summarize(),
			State:   s.State,
			Since:   s.Since,
		}
	}
	return view
}

func (b *StatusBoard) slot(worker int) (traffic.WorkerSlot, error) {
	if worker < 0 || worker >= len(b.slots) {
		return traffic.WorkerSlot{}, fmt.Errorf("worker %d out of range [0,%d)", worker, len(b.slots))
	}
	return b.slots[worker], nil
}

// replace validates cur -> next and stores next. Caller holds the write lock.
func (b *StatusBoard) replace(cur, next traffic.WorkerSlot) error {
	if !cur.State.CanTransition(next.State) {
		return fmt.Errorf("worker %d: invalid transition %s -> %s", cur.WorkerID, cur.State, next.State)
	}
	if err := next.Check(); err != nil {
		return err
	}
	b.slots[next.WorkerID] = next
	return nil
}

func copySlot(s traffic.WorkerSlot) traffic.WorkerSlot {
	if s.Occupant != nil {
		v := *s.Occupant
		s.Occupant = &v
	}
	if s.Last != nil {
		l := *s.Last
		s.Last = &l
	}
	return s
}
