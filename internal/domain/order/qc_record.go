package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// Stage is the production stage a QC round reviews
type Stage string

const (
	StageSample Stage = "sample"
	StageBulk   Stage = "bulk"
)

// ParseStage converts a string into a Stage
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown QC stage: %s", s))
	}
	return st, nil
}

// IsValid checks if the stage is known
func (s Stage) IsValid() bool {
	return s == StageSample || s == StageBulk
}

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// SubmitterDecision is the uploader's own assessment. Advisory only.
type SubmitterDecision string

const (
	SubmitterApprove SubmitterDecision = "approve"
	SubmitterReject  SubmitterDecision = "reject"
)

// IsValid checks if the submitter decision is known
func (d SubmitterDecision) IsValid() bool {
	return d == SubmitterApprove || d == SubmitterReject
}

// AdminDecision is the authoritative QC outcome
type AdminDecision string

const (
	AdminPending  AdminDecision = "pending"
	AdminApproved AdminDecision = "approved"
	AdminRejected AdminDecision = "rejected"
)

// IsValid checks if the admin decision is known
func (d AdminDecision) IsValid() bool {
	switch d {
	case AdminPending, AdminApproved, AdminRejected:
		return true
	}
	return false
}

// IsFinal returns true once the decision is approved or rejected
func (d AdminDecision) IsFinal() bool {
	return d == AdminApproved || d == AdminRejected
}

// DefectType classifies a QC finding
type DefectType string

const (
	DefectNone        DefectType = "none"
	DefectStitching   DefectType = "stitching_defect"
	DefectPrint       DefectType = "print_defect"
	DefectFabric      DefectType = "fabric_defect"
	DefectMeasurement DefectType = "measurement_defect"
	DefectColour      DefectType = "colour_mismatch"
	DefectOther       DefectType = "other"
)

// Severity bounds for a named defect
const (
	MinDefectSeverity = 1
	MaxDefectSeverity = 5
)

// IsValid checks if the defect type is known
func (t DefectType) IsValid() bool {
	switch t {
	case DefectNone, DefectStitching, DefectPrint, DefectFabric, DefectMeasurement, DefectColour, DefectOther:
		return true
	}
	return false
}

// Defect is a validated defect classification
type Defect struct {
	Type     DefectType
	Severity int
}

// NewDefect validates a defect classification. Severity is required exactly
// when a defect is named; an empty type means none.
func NewDefect(t DefectType, severity int) (Defect, error) {
	if t == "" {
		t = DefectNone
	}
	if !t.IsValid() {
		return Defect{}, shared.NewDomainError(shared.CodeInvalidDefectData, fmt.Sprintf("Unknown defect type: %s", t))
	}
	if t == DefectNone {
		if severity != 0 {
			return Defect{}, shared.NewDomainError(shared.CodeInvalidDefectData, "Severity must be empty when no defect is named")
		}
		return Defect{Type: DefectNone}, nil
	}
	if severity < MinDefectSeverity || severity > MaxDefectSeverity {
		return Defect{}, shared.NewDomainError(shared.CodeInvalidDefectData,
			fmt.Sprintf("Severity must be between %d and %d for defect %s", MinDefectSeverity, MaxDefectSeverity, t))
	}
	return Defect{Type: t, Severity: severity}, nil
}

// IsNone returns true if no defect is named
func (d Defect) IsNone() bool {
	return d.Type == DefectNone || d.Type == ""
}

// QCRecord is one upload-then-decide round for a stage of an order.
// It is immutable once the admin decision is final.
type QCRecord struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Stage          Stage
	Round          int
	Decision       SubmitterDecision
	DefectType     DefectType
	DefectSeverity int
	AdminDecision  AdminDecision
	AdminNotes     string
	SubmitterNotes string
	MediaRefs      []string
	SubmittedBy    uuid.UUID
	SubmittedAt    time.Time
	DecidedBy      *uuid.UUID
	DecidedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OpenRound starts a new pending QC round
func OpenRound(orderID uuid.UUID, stage Stage, round int, submittedBy uuid.UUID, at time.Time) (*QCRecord, error) {
	if !stage.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown QC stage: %s", stage))
	}
	if round < 1 {
		return nil, shared.NewDomainError(shared.CodeValidation, "QC round must be positive")
	}
	return &QCRecord{
		ID:            uuid.New(),
		OrderID:       orderID,
		Stage:         stage,
		Round:         round,
		DefectType:    DefectNone,
		AdminDecision: AdminPending,
		SubmittedBy:   submittedBy,
		SubmittedAt:   at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}, nil
}

// RecordSubmitterDecision stores the uploader's self-assessment and evidence
func (r *QCRecord) RecordSubmitterDecision(decision SubmitterDecision, defect Defect, mediaRefs []string, notes string) error {
	if r.AdminDecision.IsFinal() {
		return shared.NewDomainError(shared.CodeAlreadyDecided,
			fmt.Sprintf("QC record %s was already %s", r.ID, r.AdminDecision))
	}
	if !decision.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown submitter decision: %s", decision))
	}
	r.Decision = decision
	r.DefectType = defect.Type
	r.DefectSeverity = defect.Severity
	r.MediaRefs = append([]string(nil), mediaRefs...)
	r.SubmitterNotes = notes
	return nil
}

// RecordAdminDecision finalizes the round. A non-nil defect replaces the
// submitter's classification.
func (r *QCRecord) RecordAdminDecision(decision AdminDecision, defect *Defect, notes string, decidedBy uuid.UUID, at time.Time) error {
	if r.AdminDecision != AdminPending {
		return shared.NewDomainError(shared.CodeAlreadyDecided,
			fmt.Sprintf("QC record %s was already %s", r.ID, r.AdminDecision))
	}
	if !decision.IsFinal() {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Admin decision must be approved or rejected, got %q", decision))
	}
	if defect != nil {
		r.DefectType = defect.Type
		r.DefectSeverity = defect.Severity
	}
	r.AdminDecision = decision
	r.AdminNotes = notes
	r.DecidedBy = &decidedBy
	r.DecidedAt = &at
	r.UpdatedAt = at
	return nil
}

// IsPending returns true while the admin has not decided
func (r *QCRecord) IsPending() bool {
	return r.AdminDecision == AdminPending
}

// IsApproved returns true if the admin approved the round
func (r *QCRecord) IsApproved() bool {
	return r.AdminDecision == AdminApproved
}

// IsRejected returns true if the admin rejected the round
func (r *QCRecord) IsRejected() bool {
	return r.AdminDecision == AdminRejected
}
