package order

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// Audit event types that do not move the lifecycle. Transition entries use
// the Event name instead.
const (
	AuditOrderCreated         = "order_created"
	AuditDraftUpdated         = "draft_updated"
	AuditManufacturerDeclined = "manufacturer_declined"
	AuditManufacturerReassign = "manufacturer_reassigned"
	AuditPaymentReleasable    = "payment_releasable"
	AuditPaymentRefunded      = "payment_refunded"
)

// AuditEvent is an append-only entry in an order's history. Entries are
// never updated or deleted.
type AuditEvent struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Sequence   int64
	EventType  string
	FromState  LifecycleState
	ToState    LifecycleState
	ActorID    uuid.UUID
	ActorRole  shared.Role
	OccurredAt time.Time
	Metadata   map[string]any
}

// IsTransition returns true if the entry records a lifecycle state change.
// The creation entry counts as the transition into DRAFT.
func (e AuditEvent) IsTransition() bool {
	return e.ToState != ""
}

// SortAuditEvents orders entries canonically: by time, then by sequence
func SortAuditEvents(events []AuditEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].Sequence < events[j].Sequence
	})
}

// ReconstructPath returns the sequence of states visited according to the
// audit entries, in canonical order.
func ReconstructPath(events []AuditEvent) []LifecycleState {
	sorted := make([]AuditEvent, len(events))
	copy(sorted, events)
	SortAuditEvents(sorted)

	var path []LifecycleState
	for _, e := range sorted {
		if e.IsTransition() {
			path = append(path, e.ToState)
		}
	}
	return path
}

// ValidatePath checks that a visited-state sequence only moves forward along
// AllowedPath(intent), except for the two QC-reject regressions.
func ValidatePath(intent Intent, visited []LifecycleState) error {
	allowed := AllowedPath(intent)
	if allowed == nil {
		return fmt.Errorf("unknown intent %q", intent)
	}
	for i, st := range visited {
		if !st.IsValid() {
			return fmt.Errorf("step %d: %q is not a lifecycle state", i, st)
		}
		idx := pathIndex(allowed, st)
		if idx < 0 {
			return fmt.Errorf("step %d: %s is not on the %s path", i, st, intent)
		}
		if i == 0 {
			if st != StateDraft {
				return fmt.Errorf("history starts at %s, want %s", st, StateDraft)
			}
			continue
		}
		prev := visited[i-1]
		if IsRegression(prev, st) {
			continue
		}
		if idx <= pathIndex(allowed, prev) {
			return fmt.Errorf("step %d: backward move %s -> %s", i, prev, st)
		}
		if !hasEdge(prev, st) {
			return fmt.Errorf("step %d: no edge %s -> %s", i, prev, st)
		}
	}
	return nil
}

func hasEdge(from, to LifecycleState) bool {
	for _, e := range transitionTable[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// MilestoneDiscrepancy reports a milestone timestamp that disagrees with the
// audit log. Either side may be nil.
type MilestoneDiscrepancy struct {
	State        LifecycleState `json:"state"`
	Milestone    *time.Time     `json:"milestone"`
	FirstEntered *time.Time     `json:"first_entered"`
}

// milestoneTolerance absorbs timestamp precision lost in storage
const milestoneTolerance = time.Millisecond

// ReconcileMilestones compares each milestone timestamp on the order with the
// first audit entry into the corresponding state. An empty result means the
// two records agree; anything else indicates a bug or legacy data.
func ReconcileMilestones(o *Order, events []AuditEvent) []MilestoneDiscrepancy {
	first := make(map[LifecycleState]time.Time)
	sorted := make([]AuditEvent, len(events))
	copy(sorted, events)
	SortAuditEvents(sorted)
	for _, e := range sorted {
		if !e.IsTransition() {
			continue
		}
		if _, seen := first[e.ToState]; !seen {
			first[e.ToState] = e.OccurredAt
		}
	}

	var out []MilestoneDiscrepancy
	for _, st := range allStates {
		if st == StateDraft {
			continue
		}
		ms := o.Milestones.For(st)
		entered, ok := first[st]
		// SAMPLE_COMPLETED and COMPLETED share completed_at; only the state
		// actually entered is compared.
		if ms != nil && !ok && (st == StateCompleted || st == StateSampleCompleted) {
			continue
		}
		switch {
		case ms == nil && !ok:
			continue
		case ms == nil && ok:
			e := entered
			out = append(out, MilestoneDiscrepancy{State: st, FirstEntered: &e})
		case ms != nil && !ok:
			out = append(out, MilestoneDiscrepancy{State: st, Milestone: ms})
		default:
			diff := ms.Sub(entered)
			if diff < 0 {
				diff = -diff
			}
			if diff > milestoneTolerance {
				e := entered
				out = append(out, MilestoneDiscrepancy{State: st, Milestone: ms, FirstEntered: &e})
			}
		}
	}
	return out
}
