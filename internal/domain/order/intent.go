package order

import (
	"fmt"

	"github.com/leorit/backend/internal/domain/shared"
)

// Intent is the buyer's declared order shape, fixed at creation
type Intent string

const (
	IntentSampleOnly     Intent = "sample_only"
	IntentSampleThenBulk Intent = "sample_then_bulk"
	IntentDirectBulk     Intent = "direct_bulk"
)

// ParseIntent converts a string into an Intent
func ParseIntent(s string) (Intent, error) {
	i := Intent(s)
	if !i.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown order intent: %s", s))
	}
	return i, nil
}

// IsValid checks if the intent is one of the three fixed shapes
func (i Intent) IsValid() bool {
	switch i {
	case IntentSampleOnly, IntentSampleThenBulk, IntentDirectBulk:
		return true
	}
	return false
}

// String returns the string representation of Intent
func (i Intent) String() string {
	return string(i)
}

// HasSampleStage reports whether orders of this intent produce a sample
func (i Intent) HasSampleStage() bool {
	return i == IntentSampleOnly || i == IntentSampleThenBulk
}

// HasBulkStage reports whether orders of this intent go to bulk production
func (i Intent) HasBulkStage() bool {
	return i == IntentSampleThenBulk || i == IntentDirectBulk
}

var (
	commonPath = []LifecycleState{
		StateDraft, StateSubmitted, StateAdminApproved, StateManufacturerAssigned,
		StatePaymentRequested, StatePaymentConfirmed,
	}
	samplePath = []LifecycleState{
		StateSampleInProgress, StateSampleQCUploaded, StateSampleApproved,
	}
	bulkPath = []LifecycleState{
		StateBulkInProduction, StateBulkQCUploaded, StateReadyForDispatch,
		StateDispatched, StateDelivered, StateCompleted,
	}
)

func joinPaths(parts ...[]LifecycleState) []LifecycleState {
	var out []LifecycleState
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// AllowedPath returns, in order, the lifecycle states an order of the given
// intent may pass through. It returns nil for an unknown intent.
func AllowedPath(intent Intent) []LifecycleState {
	switch intent {
	case IntentSampleOnly:
		return joinPaths(commonPath, samplePath, []LifecycleState{StateSampleCompleted})
	case IntentSampleThenBulk:
		return joinPaths(commonPath, samplePath, []LifecycleState{StateBulkUnlocked}, bulkPath)
	case IntentDirectBulk:
		return joinPaths(commonPath, bulkPath)
	}
	return nil
}

// Allows reports whether state lies on the allowed path of intent
func Allows(intent Intent, state LifecycleState) bool {
	return pathIndex(AllowedPath(intent), state) >= 0
}

func pathIndex(path []LifecycleState, state LifecycleState) int {
	for i, s := range path {
		if s == state {
			return i
		}
	}
	return -1
}
