package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role is the marketplace role an actor acts under
type Role string

const (
	RoleBuyer        Role = "buyer"
	RoleManufacturer Role = "manufacturer"
	RoleAdmin        Role = "admin"
	// RoleSystem is used for transitions the platform applies on its own,
	// never for requests coming from outside.
	RoleSystem Role = "system"
)

// IsValid checks if the role is one an external caller may present
func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleManufacturer, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Actor identifies who requests an operation. It is supplied by the identity
// layer and trusted as-is; the domain only checks that it fits the operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// NewActor creates an actor
func NewActor(id uuid.UUID, role Role) Actor {
	return Actor{ID: id, Role: role}
}

// IsAdmin reports whether the actor acts as admin
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Action names an operation subject to authorization
type Action string

const (
	ActionCreateOrder           Action = "order.create"
	ActionUpdateDraft           Action = "order.update_draft"
	ActionViewOrder             Action = "order.view"
	ActionListOrders            Action = "order.list"
	ActionSubmit                Action = "order.submit"
	ActionAdminApprove          Action = "order.admin_approve"
	ActionAssignManufacturer    Action = "order.assign_manufacturer"
	ActionDeclineAssignment     Action = "order.decline_assignment"
	ActionRequestPayment        Action = "payment.request"
	ActionConfirmPayment        Action = "payment.confirm"
	ActionMarkPaymentReleasable Action = "payment.mark_releasable"
	ActionReleaseFinalPayment   Action = "payment.release"
	ActionRefundPayment         Action = "payment.refund"
	ActionStartProduction       Action = "production.start"
	ActionUploadQC              Action = "qc.upload"
	ActionDecideQC              Action = "qc.decide"
	ActionUnlockBulk            Action = "production.unlock_bulk"
	ActionStartBulk             Action = "production.start_bulk"
	ActionDispatch              Action = "shipping.dispatch"
	ActionConfirmDelivery       Action = "shipping.confirm_delivery"
	ActionManageManufacturers   Action = "manufacturer.manage"
	ActionViewManufacturers     Action = "manufacturer.view"
	ActionManageOutbox          Action = "outbox.manage"
)

// PolicyProvider decides whether an actor may perform an action. It replaces
// hard-coded privileged identities; implementations are injected.
type PolicyProvider interface {
	IsAuthorized(ctx context.Context, role Role, actorID uuid.UUID, action Action) bool
}

// DefaultPermissions is the baseline role to action matrix
func DefaultPermissions() map[Role][]Action {
	return map[Role][]Action{
		RoleBuyer: {
			ActionCreateOrder, ActionUpdateDraft, ActionViewOrder, ActionListOrders,
			ActionSubmit, ActionUnlockBulk, ActionConfirmDelivery,
		},
		RoleManufacturer: {
			ActionViewOrder, ActionListOrders, ActionDeclineAssignment,
			ActionStartProduction, ActionUploadQC, ActionStartBulk, ActionDispatch,
			ActionViewManufacturers,
		},
		RoleAdmin: {
			ActionCreateOrder, ActionUpdateDraft, ActionViewOrder, ActionListOrders,
			ActionSubmit, ActionAdminApprove, ActionAssignManufacturer, ActionDeclineAssignment,
			ActionRequestPayment, ActionConfirmPayment, ActionMarkPaymentReleasable,
			ActionReleaseFinalPayment, ActionRefundPayment, ActionStartProduction,
			ActionDecideQC, ActionUnlockBulk, ActionStartBulk,
			ActionDispatch, ActionConfirmDelivery, ActionManageManufacturers, ActionViewManufacturers,
			ActionManageOutbox,
		},
	}
}
