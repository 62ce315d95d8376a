package order

import "time"

// Milestones holds one write-once timestamp per lifecycle state. They annotate
// the lifecycle for analytics; LifecycleState stays the source of truth.
type Milestones struct {
	SubmittedAt            *time.Time
	AdminApprovedAt        *time.Time
	ManufacturerAssignedAt *time.Time
	PaymentRequestedAt     *time.Time
	PaymentConfirmedAt     *time.Time
	SampleStartedAt        *time.Time
	SampleQCUploadedAt     *time.Time
	SampleApprovedAt       *time.Time
	BulkUnlockedAt         *time.Time
	BulkStartedAt          *time.Time
	BulkQCUploadedAt       *time.Time
	ReadyForDispatchAt     *time.Time
	DispatchedAt           *time.Time
	DeliveredAt            *time.Time
	// CompletedAt is stamped by both COMPLETED and SAMPLE_COMPLETED
	CompletedAt *time.Time
}

func (m *Milestones) slot(state LifecycleState) **time.Time {
	switch state {
	case StateSubmitted:
		return &m.SubmittedAt
	case StateAdminApproved:
		return &m.AdminApprovedAt
	case StateManufacturerAssigned:
		return &m.ManufacturerAssignedAt
	case StatePaymentRequested:
		return &m.PaymentRequestedAt
	case StatePaymentConfirmed:
		return &m.PaymentConfirmedAt
	case StateSampleInProgress:
		return &m.SampleStartedAt
	case StateSampleQCUploaded:
		return &m.SampleQCUploadedAt
	case StateSampleApproved:
		return &m.SampleApprovedAt
	case StateBulkUnlocked:
		return &m.BulkUnlockedAt
	case StateBulkInProduction:
		return &m.BulkStartedAt
	case StateBulkQCUploaded:
		return &m.BulkQCUploadedAt
	case StateReadyForDispatch:
		return &m.ReadyForDispatchAt
	case StateDispatched:
		return &m.DispatchedAt
	case StateDelivered:
		return &m.DeliveredAt
	case StateCompleted, StateSampleCompleted:
		return &m.CompletedAt
	}
	return nil
}

// For returns the milestone timestamp of a state, nil if not reached
func (m *Milestones) For(state LifecycleState) *time.Time {
	s := m.slot(state)
	if s == nil {
		return nil
	}
	return *s
}

// stamp sets the milestone of state unless it is already set. It returns
// true if a new timestamp was written.
func (m *Milestones) stamp(state LifecycleState, at time.Time) bool {
	s := m.slot(state)
	if s == nil || *s != nil {
		return false
	}
	t := at
	*s = &t
	return true
}
