package order

import (
	"github.com/shopspring/decimal"
)

// PaymentState is the escrow bookkeeping state attached to an order. It does
// not move money; the lifecycle reads it as a gate.
type PaymentState string

const (
	PaymentInitiated  PaymentState = "initiated"
	PaymentHeld       PaymentState = "held"
	PaymentReleasable PaymentState = "releasable"
	PaymentReleased   PaymentState = "released"
	PaymentRefunded   PaymentState = "refunded"
)

// IsValid checks if the payment state is known
func (p PaymentState) IsValid() bool {
	switch p {
	case PaymentInitiated, PaymentHeld, PaymentReleasable, PaymentReleased, PaymentRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentState
func (p PaymentState) String() string {
	return string(p)
}

// IsFinal returns true for released and refunded
func (p PaymentState) IsFinal() bool {
	return p == PaymentReleased || p == PaymentRefunded
}

// CanTransitionTo checks if the payment state can move to target
func (p PaymentState) CanTransitionTo(target PaymentState) bool {
	if target == PaymentRefunded {
		return !p.IsFinal()
	}
	switch p {
	case PaymentInitiated:
		return target == PaymentHeld
	case PaymentHeld:
		return target == PaymentReleasable
	case PaymentReleasable:
		return target == PaymentReleased
	}
	return false
}

// Escrow split, upfront/final
const (
	EscrowUpfrontPercent = 55
	EscrowFinalPercent   = 100 - EscrowUpfrontPercent
)

// EscrowSplit divides total into the upfront and final parts. Upfront is
// rounded to cents and final takes the remainder, so the parts always sum to
// total.
func EscrowSplit(total decimal.Decimal) (upfront, final decimal.Decimal) {
	upfront = total.Mul(decimal.NewFromInt(EscrowUpfrontPercent)).Div(decimal.NewFromInt(100)).Round(2)
	final = total.Sub(upfront)
	return upfront, final
}
