package order

import (
	"fmt"

	"github.com/leorit/backend/internal/domain/shared"
)

// LifecycleState represents the lifecycle state of an order
type LifecycleState string

const (
	StateDraft                LifecycleState = "DRAFT"
	StateSubmitted            LifecycleState = "SUBMITTED"
	StateAdminApproved        LifecycleState = "ADMIN_APPROVED"
	StateManufacturerAssigned LifecycleState = "MANUFACTURER_ASSIGNED"
	StatePaymentRequested     LifecycleState = "PAYMENT_REQUESTED"
	StatePaymentConfirmed     LifecycleState = "PAYMENT_CONFIRMED"
	StateSampleInProgress     LifecycleState = "SAMPLE_IN_PROGRESS"
	StateSampleQCUploaded     LifecycleState = "SAMPLE_QC_UPLOADED"
	StateSampleApproved       LifecycleState = "SAMPLE_APPROVED"
	StateBulkUnlocked         LifecycleState = "BULK_UNLOCKED"
	StateBulkInProduction     LifecycleState = "BULK_IN_PRODUCTION"
	StateBulkQCUploaded       LifecycleState = "BULK_QC_UPLOADED"
	StateReadyForDispatch     LifecycleState = "READY_FOR_DISPATCH"
	StateDispatched           LifecycleState = "DISPATCHED"
	StateDelivered            LifecycleState = "DELIVERED"
	StateCompleted            LifecycleState = "COMPLETED"
	// StateSampleCompleted is the terminal state of sample-only orders, the
	// sample variant of COMPLETED.
	StateSampleCompleted LifecycleState = "SAMPLE_COMPLETED"
)

var allStates = []LifecycleState{
	StateDraft, StateSubmitted, StateAdminApproved, StateManufacturerAssigned,
	StatePaymentRequested, StatePaymentConfirmed, StateSampleInProgress,
	StateSampleQCUploaded, StateSampleApproved, StateBulkUnlocked,
	StateBulkInProduction, StateBulkQCUploaded, StateReadyForDispatch,
	StateDispatched, StateDelivered, StateCompleted, StateSampleCompleted,
}

// AllStates returns every lifecycle state
func AllStates() []LifecycleState {
	out := make([]LifecycleState, len(allStates))
	copy(out, allStates)
	return out
}

// ParseLifecycleState converts a string into a LifecycleState
func ParseLifecycleState(s string) (LifecycleState, error) {
	st := LifecycleState(s)
	if !st.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown lifecycle state: %s", s))
	}
	return st, nil
}

// IsValid checks if the state is a member of the lifecycle enum
func (s LifecycleState) IsValid() bool {
	for _, st := range allStates {
		if st == s {
			return true
		}
	}
	return false
}

// String returns the string representation of LifecycleState
func (s LifecycleState) String() string {
	return string(s)
}

// IsTerminal returns true for COMPLETED and its sample-only variant
func (s LifecycleState) IsTerminal() bool {
	return s == StateCompleted || s == StateSampleCompleted
}

// Event names a lifecycle transition request. Transition audit entries carry
// the event name as their type.
type Event string

const (
	EventSubmit              Event = "submit"
	EventAdminApprove        Event = "admin_approve"
	EventAssignManufacturer  Event = "assign_manufacturer"
	EventRequestPayment      Event = "request_payment"
	EventConfirmPayment      Event = "confirm_payment"
	EventStartProduction     Event = "start_production"
	EventUploadQC            Event = "upload_qc"
	EventAdminDecide         Event = "admin_decide"
	EventUnlockBulk          Event = "unlock_bulk"
	EventCompleteSample      Event = "complete_sample"
	EventStartBulk           Event = "start_bulk"
	EventPackAndDispatch     Event = "pack_and_dispatch"
	EventConfirmDelivery     Event = "confirm_delivery"
	EventReleaseFinalPayment Event = "release_final_payment"
)

// String returns the string representation of Event
func (e Event) String() string {
	return string(e)
}

// Edge is one row of the transition table
type Edge struct {
	Event Event
	To    LifecycleState
}

// transitionTable lists every legal edge. Edges sharing an event are
// disambiguated by the operation (intent or QC decision).
var transitionTable = map[LifecycleState][]Edge{
	StateDraft:                {{EventSubmit, StateSubmitted}},
	StateSubmitted:            {{EventAdminApprove, StateAdminApproved}},
	StateAdminApproved:        {{EventAssignManufacturer, StateManufacturerAssigned}},
	StateManufacturerAssigned: {{EventRequestPayment, StatePaymentRequested}},
	StatePaymentRequested:     {{EventConfirmPayment, StatePaymentConfirmed}},
	StatePaymentConfirmed: {
		{EventStartProduction, StateSampleInProgress},
		{EventStartProduction, StateBulkInProduction},
	},
	StateSampleInProgress: {{EventUploadQC, StateSampleQCUploaded}},
	StateSampleQCUploaded: {
		{EventAdminDecide, StateSampleApproved},
		{EventAdminDecide, StateSampleInProgress},
	},
	StateSampleApproved: {
		{EventUnlockBulk, StateBulkUnlocked},
		{EventCompleteSample, StateSampleCompleted},
	},
	StateBulkUnlocked:     {{EventStartBulk, StateBulkInProduction}},
	StateBulkInProduction: {{EventUploadQC, StateBulkQCUploaded}},
	StateBulkQCUploaded: {
		{EventAdminDecide, StateReadyForDispatch},
		{EventAdminDecide, StateBulkInProduction},
	},
	StateReadyForDispatch: {{EventPackAndDispatch, StateDispatched}},
	StateDispatched:       {{EventConfirmDelivery, StateDelivered}},
	StateDelivered:        {{EventReleaseFinalPayment, StateCompleted}},
}

// Edges returns the outgoing edges of a state
func (s LifecycleState) Edges() []Edge {
	edges := transitionTable[s]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// Accepts checks if the state has an outgoing edge for the event
func (s LifecycleState) Accepts(event Event) bool {
	for _, e := range transitionTable[s] {
		if e.Event == event {
			return true
		}
	}
	return false
}

// CanTransitionTo checks if an edge for event leads from s to target
func (s LifecycleState) CanTransitionTo(event Event, target LifecycleState) bool {
	for _, e := range transitionTable[s] {
		if e.Event == event && e.To == target {
			return true
		}
	}
	return false
}

// IsRegression reports whether from -> to is one of the two QC-reject edges
func IsRegression(from, to LifecycleState) bool {
	return (from == StateSampleQCUploaded && to == StateSampleInProgress) ||
		(from == StateBulkQCUploaded && to == StateBulkInProduction)
}
