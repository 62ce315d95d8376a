package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a draft does not name one
const DefaultCurrency = "INR"

// now returns the transition clock. Microsecond precision matches what the
// store keeps, so milestones and audit timestamps compare exactly after a
// round trip.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Details are the descriptive order attributes. None of them carry state.
type Details struct {
	ProductName    string
	Fabric         string
	Colour         string
	SizeBreakdown  string
	Notes          string
	SampleQuantity int
	BulkQuantity   int
	UnitPrice      decimal.Decimal
	Currency       string
}

// ManufacturerRef is what the lifecycle needs to know about a manufacturer
// to accept an assignment
type ManufacturerRef struct {
	ID       uuid.UUID
	Verified bool
	Active   bool
}

// QCSubmission is a manufacturer's QC upload
type QCSubmission struct {
	Stage      Stage
	Decision   SubmitterDecision
	DefectType DefectType
	Severity   int
	MediaRefs  []string
	Notes      string
}

// QCDecision is an admin's verdict on a pending QC round
type QCDecision struct {
	QCRecordID uuid.UUID
	Decision   AdminDecision
	DefectType DefectType
	Severity   int
	Notes      string
}

// pendingChanges collects child rows written together with the order row
type pendingChanges struct {
	newQC     []*QCRecord
	decidedQC []*QCRecord
	audit     []*AuditEvent
}

// Order is the aggregate root of the order lifecycle. It owns its QC records
// and audit entries.
type Order struct {
	shared.BaseAggregateRoot
	Details
	Milestones
	OrderNumber         string
	BuyerID             uuid.UUID
	ManufacturerID      *uuid.UUID
	Intent              Intent
	State               LifecycleState
	PaymentState        PaymentState
	TotalAmount         decimal.Decimal
	UpfrontAmount       decimal.Decimal
	FinalAmount         decimal.Decimal
	TrackingID          string
	Carrier             string
	RefundReason        string
	EventSeq            int64
	PaymentHeldAt       *time.Time
	PaymentReleasableAt *time.Time
	PaymentReleasedAt   *time.Time
	PaymentRefundedAt   *time.Time
	QCRecords           []*QCRecord

	persistedState LifecycleState
	changes        pendingChanges
}

// NewOrder creates a draft order
func NewOrder(orderNumber string, buyerID uuid.UUID, intent Intent, details Details, actor shared.Actor) (*Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Order number cannot be empty")
	}
	if buyerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Buyer ID cannot be empty")
	}
	if !intent.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown order intent: %s", intent))
	}
	if !actor.IsAdmin() && !(actor.Role == shared.RoleBuyer && actor.ID == buyerID) {
		return nil, shared.NewDomainError(shared.CodeUnauthorized, "Only the buyer or an admin can create an order")
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	at := now()
	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(at),
		OrderNumber:       strings.TrimSpace(orderNumber),
		BuyerID:           buyerID,
		Intent:            intent,
		State:             StateDraft,
		PaymentState:      PaymentInitiated,
	}
	o.setDetails(details)

	o.appendAudit(AuditOrderCreated, "", StateDraft, actor, at, map[string]any{
		"intent":       string(intent),
		"order_number": o.OrderNumber,
	})
	o.Raise(NewOrderCreatedEvent(o, at))
	return o, nil
}

func validateDetails(d Details) error {
	if d.SampleQuantity < 0 || d.BulkQuantity < 0 {
		return shared.NewDomainError(shared.CodeValidation, "Quantities cannot be negative")
	}
	if d.UnitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeValidation, "Unit price cannot be negative")
	}
	return nil
}

func (o *Order) setDetails(d Details) {
	if strings.TrimSpace(d.Currency) == "" {
		d.Currency = DefaultCurrency
	}
	o.Details = d
	o.recalculateTotals()
}

// recalculateTotals prices the quantities the intent will produce and splits
// the total into escrow parts
func (o *Order) recalculateTotals() {
	qty := 0
	if o.Intent.HasSampleStage() {
		qty += o.SampleQuantity
	}
	if o.Intent.HasBulkStage() {
		qty += o.BulkQuantity
	}
	o.TotalAmount = o.UnitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	o.UpfrontAmount, o.FinalAmount = EscrowSplit(o.TotalAmount)
}

// UpdateDraft replaces the descriptive details of a draft order
func (o *Order) UpdateDraft(details Details, actor shared.Actor) error {
	if err := o.authorizeBuyer(actor); err != nil {
		return err
	}
	if o.State != StateDraft {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot edit order in %s state", o.State))
	}
	if err := validateDetails(details); err != nil {
		return err
	}
	at := now()
	o.setDetails(details)
	o.UpdatedAt = at
	o.appendAudit(AuditDraftUpdated, "", "", actor, at, nil)
	return nil
}

// MissingFields lists the fields that must be filled before submission
func (o *Order) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(o.ProductName) == "" {
		missing = append(missing, "product_name")
	}
	if strings.TrimSpace(o.Fabric) == "" {
		missing = append(missing, "fabric")
	}
	if o.Intent.HasSampleStage() && o.SampleQuantity <= 0 {
		missing = append(missing, "sample_quantity")
	}
	if o.Intent.HasBulkStage() && o.BulkQuantity <= 0 {
		missing = append(missing, "bulk_quantity")
	}
	if !o.UnitPrice.IsPositive() {
		missing = append(missing, "unit_price")
	}
	return missing
}

// Submit sends a complete draft for admin review
func (o *Order) Submit(actor shared.Actor) error {
	if err := o.authorizeBuyer(actor); err != nil {
		return err
	}
	if err := o.guardEvent(EventSubmit, StateSubmitted); err != nil {
		return err
	}
	if missing := o.MissingFields(); len(missing) > 0 {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Order is missing required fields: %s", strings.Join(missing, ", ")))
	}
	o.apply(EventSubmit, StateSubmitted, actor, now(), nil)
	return nil
}

// Approve records the admin's approval of a submitted order
func (o *Order) Approve(actor shared.Actor) error {
	if err := requireAdmin(actor, EventAdminApprove); err != nil {
		return err
	}
	if err := o.guardEvent(EventAdminApprove, StateAdminApproved); err != nil {
		return err
	}
	o.apply(EventAdminApprove, StateAdminApproved, actor, now(), nil)
	return nil
}

// AssignManufacturer assigns a verified manufacturer. On an order whose
// manufacturer declined, it re-sets the assignment without a state change.
func (o *Order) AssignManufacturer(m ManufacturerRef, actor shared.Actor) error {
	if err := requireAdmin(actor, EventAssignManufacturer); err != nil {
		return err
	}

	if o.State == StateManufacturerAssigned && o.ManufacturerID == nil {
		if err := o.guardNotRefunded(); err != nil {
			return err
		}
		if err := checkManufacturer(m); err != nil {
			return err
		}
		at := now()
		id := m.ID
		o.ManufacturerID = &id
		o.UpdatedAt = at
		o.appendAudit(AuditManufacturerReassign, "", "", actor, at, map[string]any{
			"manufacturer_id": id.String(),
		})
		o.Raise(NewManufacturerAssignmentChangedEvent(o, AssignmentReassigned, id, "", at))
		return nil
	}

	if err := o.guardEvent(EventAssignManufacturer, StateManufacturerAssigned); err != nil {
		return err
	}
	if err := checkManufacturer(m); err != nil {
		return err
	}
	id := m.ID
	o.ManufacturerID = &id
	o.apply(EventAssignManufacturer, StateManufacturerAssigned, actor, now(), map[string]any{
		"manufacturer_id": id.String(),
	})
	return nil
}

func checkManufacturer(m ManufacturerRef) error {
	if m.ID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Manufacturer ID cannot be empty")
	}
	if !m.Active {
		return shared.NewDomainError(shared.CodeGuardFailed, fmt.Sprintf("Manufacturer %s is not active", m.ID))
	}
	if !m.Verified {
		return shared.NewDomainError(shared.CodeGuardFailed, fmt.Sprintf("Manufacturer %s is not verified", m.ID))
	}
	return nil
}

// DeclineAssignment clears the manufacturer of an assigned order so another
// one can be assigned. The lifecycle state does not change.
func (o *Order) DeclineAssignment(reason string, actor shared.Actor) error {
	if err := o.authorizeManufacturer(actor); err != nil {
		return err
	}
	if o.State != StateManufacturerAssigned {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot decline assignment of order in %s state", o.State))
	}
	if err := o.guardNotRefunded(); err != nil {
		return err
	}
	if o.ManufacturerID == nil {
		return shared.NewDomainError(shared.CodeGuardFailed, "Order has no manufacturer assigned")
	}

	at := now()
	prev := *o.ManufacturerID
	o.ManufacturerID = nil
	o.UpdatedAt = at
	o.appendAudit(AuditManufacturerDeclined, "", "", actor, at, map[string]any{
		"manufacturer_id": prev.String(),
		"reason":          reason,
	})
	o.Raise(NewManufacturerAssignmentChangedEvent(o, AssignmentDeclined, prev, reason, at))
	return nil
}

// RequestPayment asks the buyer to pay into escrow
func (o *Order) RequestPayment(actor shared.Actor) error {
	if err := requireAdmin(actor, EventRequestPayment); err != nil {
		return err
	}
	if err := o.guardEvent(EventRequestPayment, StatePaymentRequested); err != nil {
		return err
	}
	if o.ManufacturerID == nil {
		return shared.NewDomainError(shared.CodeGuardFailed, "Order has no manufacturer assigned")
	}
	o.apply(EventRequestPayment, StatePaymentRequested, actor, now(), map[string]any{
		"upfront_amount": o.UpfrontAmount.StringFixed(2),
		"currency":       o.Currency,
	})
	return nil
}

// ConfirmPayment records the buyer's payment as held in escrow
func (o *Order) ConfirmPayment(actor shared.Actor) error {
	if err := requireAdmin(actor, EventConfirmPayment); err != nil {
		return err
	}
	if err := o.guardEvent(EventConfirmPayment, StatePaymentConfirmed); err != nil {
		return err
	}
	if !o.PaymentState.CanTransitionTo(PaymentHeld) {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Payment is %s and cannot be marked held", o.PaymentState))
	}
	at := now()
	o.setPayment(PaymentHeld, "", at)
	o.apply(EventConfirmPayment, StatePaymentConfirmed, actor, at, map[string]any{
		"payment_state": string(PaymentHeld),
	})
	return nil
}

// StartProduction begins the sample, or bulk production for direct_bulk
func (o *Order) StartProduction(actor shared.Actor) error {
	if err := o.authorizeManufacturer(actor); err != nil {
		return err
	}
	to := StateSampleInProgress
	if o.Intent == IntentDirectBulk {
		to = StateBulkInProduction
	}
	if err := o.guardEvent(EventStartProduction, to); err != nil {
		return err
	}
	if o.PaymentState != PaymentHeld {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Payment must be held before production starts, it is %s", o.PaymentState))
	}
	o.apply(EventStartProduction, to, actor, now(), nil)
	return nil
}

// UploadQC opens a QC round for the stage in production
func (o *Order) UploadQC(sub QCSubmission, actor shared.Actor) (*QCRecord, error) {
	if err := o.RequireAssignedManufacturer(actor); err != nil {
		return nil, err
	}
	stage, to := StageSample, StateSampleQCUploaded
	if o.State == StateBulkInProduction {
		stage, to = StageBulk, StateBulkQCUploaded
	}
	if err := o.guardEvent(EventUploadQC, to); err != nil {
		return nil, err
	}
	if sub.Stage != "" && sub.Stage != stage {
		return nil, shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Order is in %s; expected a %s QC upload, got %s", o.State, stage, sub.Stage))
	}
	if sub.Decision == "" {
		sub.Decision = SubmitterApprove
	}
	if !sub.Decision.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown submitter decision: %s", sub.Decision))
	}
	defect, err := NewDefect(sub.DefectType, sub.Severity)
	if err != nil {
		return nil, err
	}
	if open := o.OpenRound(stage); open != nil {
		return nil, shared.NewDomainError(shared.CodeDuplicateOpenRound,
			fmt.Sprintf("QC round %d for %s stage is still pending", open.Round, stage))
	}

	at := now()
	rec, err := OpenRound(o.ID, stage, o.Attempts(stage)+1, actor.ID, at)
	if err != nil {
		return nil, err
	}
	if err := rec.RecordSubmitterDecision(sub.Decision, defect, sub.MediaRefs, sub.Notes); err != nil {
		return nil, err
	}
	o.QCRecords = append(o.QCRecords, rec)
	o.changes.newQC = append(o.changes.newQC, rec)
	o.apply(EventUploadQC, to, actor, at, map[string]any{
		"qc_record_id":       rec.ID.String(),
		"stage":              string(stage),
		"round":              rec.Round,
		"submitter_decision": string(rec.Decision),
	})
	return rec, nil
}

// DecideQC applies the admin's decision to a pending QC round. Approval of a
// sample-only order's sample completes the order in the same step.
func (o *Order) DecideQC(d QCDecision, actor shared.Actor) (*QCRecord, error) {
	if err := requireAdmin(actor, EventAdminDecide); err != nil {
		return nil, err
	}
	rec := o.QCRecord(d.QCRecordID)
	if rec == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("QC record %s not found on order %s", d.QCRecordID, o.OrderNumber))
	}
	if !rec.IsPending() {
		return nil, shared.NewDomainError(shared.CodeAlreadyDecided,
			fmt.Sprintf("QC record %s was already %s", rec.ID, rec.AdminDecision))
	}
	if !d.Decision.IsFinal() {
		return nil, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Admin decision must be approved or rejected, got %q", d.Decision))
	}
	var defect *Defect
	if d.DefectType != "" || d.Severity != 0 {
		df, err := NewDefect(d.DefectType, d.Severity)
		if err != nil {
			return nil, err
		}
		defect = &df
	}

	var uploaded, to LifecycleState
	switch rec.Stage {
	case StageSample:
		uploaded, to = StateSampleQCUploaded, StateSampleApproved
		if d.Decision == AdminRejected {
			to = StateSampleInProgress
		}
	default:
		uploaded, to = StateBulkQCUploaded, StateReadyForDispatch
		if d.Decision == AdminRejected {
			to = StateBulkInProduction
		}
	}
	if o.State != uploaded {
		return nil, o.invalidTransition(EventAdminDecide)
	}
	if err := o.guardEvent(EventAdminDecide, to); err != nil {
		return nil, err
	}
	completeSample := to == StateSampleApproved && o.Intent == IntentSampleOnly
	if completeSample {
		if err := o.checkEdge(StateSampleApproved, EventCompleteSample, StateSampleCompleted); err != nil {
			return nil, err
		}
	}

	at := now()
	if err := rec.RecordAdminDecision(d.Decision, defect, d.Notes, actor.ID, at); err != nil {
		return nil, err
	}
	o.changes.decidedQC = append(o.changes.decidedQC, rec)
	meta := map[string]any{
		"qc_record_id":   rec.ID.String(),
		"stage":          string(rec.Stage),
		"round":          rec.Round,
		"admin_decision": string(rec.AdminDecision),
		"defect_type":    string(rec.DefectType),
	}
	if rec.DefectSeverity > 0 {
		meta["defect_severity"] = rec.DefectSeverity
	}
	o.apply(EventAdminDecide, to, actor, at, meta)
	if completeSample {
		o.apply(EventCompleteSample, StateSampleCompleted, actor, at, map[string]any{
			"qc_record_id": rec.ID.String(),
		})
	}
	return rec, nil
}

// UnlockBulk moves an approved sample on to bulk production
func (o *Order) UnlockBulk(actor shared.Actor) error {
	if err := o.authorizeBuyer(actor); err != nil {
		return err
	}
	if err := o.guardEvent(EventUnlockBulk, StateBulkUnlocked); err != nil {
		return err
	}
	if last := o.LatestQCRecord(StageSample); last == nil || !last.IsApproved() {
		return shared.NewDomainError(shared.CodeGuardFailed, "Bulk can only be unlocked after an approved sample")
	}
	o.apply(EventUnlockBulk, StateBulkUnlocked, actor, now(), nil)
	return nil
}

// StartBulk begins bulk production after unlock
func (o *Order) StartBulk(actor shared.Actor) error {
	if err := o.authorizeManufacturer(actor); err != nil {
		return err
	}
	if err := o.guardEvent(EventStartBulk, StateBulkInProduction); err != nil {
		return err
	}
	o.apply(EventStartBulk, StateBulkInProduction, actor, now(), nil)
	return nil
}

// Dispatch records shipment of the approved bulk order
func (o *Order) Dispatch(trackingID, carrier string, actor shared.Actor) error {
	if err := o.authorizeManufacturer(actor); err != nil {
		return err
	}
	if err := o.guardEvent(EventPackAndDispatch, StateDispatched); err != nil {
		return err
	}
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return shared.NewDomainError(shared.CodeGuardFailed, "Tracking ID is required to dispatch")
	}
	o.TrackingID = trackingID
	o.Carrier = strings.TrimSpace(carrier)
	o.apply(EventPackAndDispatch, StateDispatched, actor, now(), map[string]any{
		"tracking_id": o.TrackingID,
		"carrier":     o.Carrier,
	})
	return nil
}

// ConfirmDelivery records receipt by the buyer
func (o *Order) ConfirmDelivery(actor shared.Actor) error {
	if err := o.authorizeBuyer(actor); err != nil {
		return err
	}
	if err := o.guardEvent(EventConfirmDelivery, StateDelivered); err != nil {
		return err
	}
	o.apply(EventConfirmDelivery, StateDelivered, actor, now(), nil)
	return nil
}

// MarkPaymentReleasable makes held funds releasable once goods have shipped
func (o *Order) MarkPaymentReleasable(actor shared.Actor) error {
	if err := requireAdmin(actor, "mark_payment_releasable"); err != nil {
		return err
	}
	if !o.PaymentState.CanTransitionTo(PaymentReleasable) {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Payment is %s; only held payments can become releasable", o.PaymentState))
	}
	if o.State != StateDispatched && o.State != StateDelivered {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Payment can become releasable only after dispatch, order is %s", o.State))
	}
	at := now()
	from := o.PaymentState
	o.setPayment(PaymentReleasable, "", at)
	o.appendAudit(AuditPaymentReleasable, "", "", actor, at, map[string]any{
		"from": string(from),
		"to":   string(PaymentReleasable),
	})
	return nil
}

// ReleaseFinalPayment releases escrow and completes a delivered order
func (o *Order) ReleaseFinalPayment(actor shared.Actor) error {
	if err := requireAdmin(actor, EventReleaseFinalPayment); err != nil {
		return err
	}
	if err := o.guardEvent(EventReleaseFinalPayment, StateCompleted); err != nil {
		return err
	}
	if o.PaymentState != PaymentReleasable {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Payment must be releasable to complete the order, it is %s", o.PaymentState))
	}
	if last := o.LatestQCRecord(StageBulk); last == nil || !last.IsApproved() {
		return shared.NewDomainError(shared.CodeGuardFailed, "Final QC round is not approved")
	}
	at := now()
	o.setPayment(PaymentReleased, "", at)
	o.apply(EventReleaseFinalPayment, StateCompleted, actor, at, map[string]any{
		"payment_state": string(PaymentReleased),
		"final_amount":  o.FinalAmount.StringFixed(2),
	})
	return nil
}

// RefundPayment refunds escrow. A refunded order accepts no further
// lifecycle transitions.
func (o *Order) RefundPayment(reason string, actor shared.Actor) error {
	if err := requireAdmin(actor, "refund_payment"); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError(shared.CodeValidation, "Refund reason is required")
	}
	if !o.PaymentState.CanTransitionTo(PaymentRefunded) {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Payment is already %s", o.PaymentState))
	}
	at := now()
	from := o.PaymentState
	o.RefundReason = reason
	o.setPayment(PaymentRefunded, reason, at)
	o.appendAudit(AuditPaymentRefunded, "", "", actor, at, map[string]any{
		"from":   string(from),
		"reason": reason,
	})
	return nil
}

// setPayment moves the escrow state; callers check CanTransitionTo first
func (o *Order) setPayment(to PaymentState, reason string, at time.Time) {
	from := o.PaymentState
	o.PaymentState = to
	t := at
	switch to {
	case PaymentHeld:
		o.PaymentHeldAt = &t
	case PaymentReleasable:
		o.PaymentReleasableAt = &t
	case PaymentReleased:
		o.PaymentReleasedAt = &t
	case PaymentRefunded:
		o.PaymentRefundedAt = &t
	}
	o.UpdatedAt = at
	o.Raise(NewPaymentStateChangedEvent(o, from, reason, at))
}

// guardEvent runs the checks common to every transition: the order is not
// terminal, the edge exists, payment was not refunded, and the target lies
// on the intent's path.
func (o *Order) guardEvent(event Event, to LifecycleState) error {
	if err := o.checkEdge(o.State, event, to); err != nil {
		return err
	}
	return o.guardNotRefunded()
}

func (o *Order) checkEdge(from LifecycleState, event Event, to LifecycleState) error {
	if from.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Order %s is in terminal state %s", o.OrderNumber, from))
	}
	if !from.Accepts(event) {
		return o.invalidTransition(event)
	}
	if !Allows(o.Intent, to) {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("%s orders never reach %s", o.Intent, to))
	}
	if !from.CanTransitionTo(event, to) {
		return o.invalidTransition(event)
	}
	return nil
}

func (o *Order) guardNotRefunded() error {
	if o.PaymentState == PaymentRefunded {
		return shared.NewDomainError(shared.CodeGuardFailed,
			fmt.Sprintf("Order %s was refunded", o.OrderNumber))
	}
	return nil
}

func (o *Order) invalidTransition(event Event) error {
	if o.State.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Order %s is in terminal state %s", o.OrderNumber, o.State))
	}
	return shared.NewDomainError(shared.CodeInvalidTransition,
		fmt.Sprintf("Cannot %s order in %s state", event, o.State))
}

// apply performs a transition whose guards have passed
func (o *Order) apply(event Event, to LifecycleState, actor shared.Actor, at time.Time, meta map[string]any) {
	from := o.State
	o.State = to
	o.Milestones.stamp(to, at)
	o.UpdatedAt = at
	o.appendAudit(string(event), from, to, actor, at, meta)
	o.Raise(NewOrderTransitionedEvent(o, event, from, actor, at))
}

func (o *Order) appendAudit(eventType string, from, to LifecycleState, actor shared.Actor, at time.Time, meta map[string]any) {
	o.EventSeq++
	if meta == nil {
		meta = map[string]any{}
	}
	o.changes.audit = append(o.changes.audit, &AuditEvent{
		ID:         uuid.New(),
		OrderID:    o.ID,
		Sequence:   o.EventSeq,
		EventType:  eventType,
		FromState:  from,
		ToState:    to,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		OccurredAt: at,
		Metadata:   meta,
	})
}

func requireAdmin(actor shared.Actor, op any) error {
	if !actor.IsAdmin() {
		return shared.NewDomainError(shared.CodeUnauthorized,
			fmt.Sprintf("Only an admin can %v, actor role is %s", op, actor.Role))
	}
	return nil
}

// authorizeBuyer admits the owning buyer and admins
func (o *Order) authorizeBuyer(actor shared.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == shared.RoleBuyer && actor.ID == o.BuyerID {
		return nil
	}
	return shared.NewDomainError(shared.CodeUnauthorized,
		fmt.Sprintf("Actor %s (%s) is not the buyer of order %s", actor.ID, actor.Role, o.OrderNumber))
}

// authorizeManufacturer admits the assigned manufacturer and admins
func (o *Order) authorizeManufacturer(actor shared.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return o.RequireAssignedManufacturer(actor)
}

// RequireAssignedManufacturer fails unless actor is the assigned
// manufacturer. Admins do not pass.
func (o *Order) RequireAssignedManufacturer(actor shared.Actor) error {
	if actor.Role == shared.RoleManufacturer && o.ManufacturerID != nil && *o.ManufacturerID == actor.ID {
		return nil
	}
	return shared.NewDomainError(shared.CodeUnauthorized,
		fmt.Sprintf("Actor %s (%s) is not the manufacturer of order %s", actor.ID, actor.Role, o.OrderNumber))
}

// CanView reports whether actor may read the order
func (o *Order) CanView(actor shared.Actor) bool {
	return o.authorizeBuyer(actor) == nil || o.authorizeManufacturer(actor) == nil
}

// QCRecord returns the QC record with the given ID, or nil
func (o *Order) QCRecord(id uuid.UUID) *QCRecord {
	for _, r := range o.QCRecords {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Attempts returns the number of QC rounds opened for a stage
func (o *Order) Attempts(stage Stage) int {
	n := 0
	for _, r := range o.QCRecords {
		if r.Stage == stage {
			n++
		}
	}
	return n
}

// LatestQCRecord returns the highest round for a stage, or nil
func (o *Order) LatestQCRecord(stage Stage) *QCRecord {
	var latest *QCRecord
	for _, r := range o.QCRecords {
		if r.Stage == stage && (latest == nil || r.Round > latest.Round) {
			latest = r
		}
	}
	return latest
}

// OpenRound returns the pending QC record for a stage, or nil
func (o *Order) OpenRound(stage Stage) *QCRecord {
	for _, r := range o.QCRecords {
		if r.Stage == stage && r.IsPending() {
			return r
		}
	}
	return nil
}

// IsTerminal returns true if the order can no longer transition
func (o *Order) IsTerminal() bool {
	return o.State.IsTerminal()
}

// PersistedState is the lifecycle state as last read from or written to the
// store. Repositories use it as the expected value of the compare-and-set.
func (o *Order) PersistedState() LifecycleState {
	return o.persistedState
}

// IsNew returns true if the order was never persisted
func (o *Order) IsNew() bool {
	return o.persistedState == ""
}

// MarkPersisted records that the store now matches the aggregate
func (o *Order) MarkPersisted() {
	o.persistedState = o.State
	o.changes = pendingChanges{}
	o.ClearEvents()
}

// PendingAuditEvents returns audit entries not yet written
func (o *Order) PendingAuditEvents() []*AuditEvent {
	return o.changes.audit
}

// NewQCRecords returns QC rounds opened since the last write
func (o *Order) NewQCRecords() []*QCRecord {
	return o.changes.newQC
}

// DecidedQCRecords returns QC rounds decided since the last write
func (o *Order) DecidedQCRecords() []*QCRecord {
	return o.changes.decidedQC
}

// HasPendingChanges returns true if there is anything to write
func (o *Order) HasPendingChanges() bool {
	return len(o.changes.audit) > 0 || len(o.changes.newQC) > 0 || len(o.changes.decidedQC) > 0
}
