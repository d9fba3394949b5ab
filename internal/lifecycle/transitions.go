package lifecycle

import (
	"fmt"

	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
)

// Cause is what triggered a transition. Some edges are only open to a
// specific cause.
type Cause string

const (
	CauseStaff    Cause = "STAFF"
	CausePayment  Cause = "PAYMENT"
	CauseApproval Cause = "APPROVAL"
	CauseReport   Cause = "REPORT"
)

// cancellable lists the states an order can be cancelled from.
var cancellable = map[enum.OrderStatus]bool{
	enum.OrderStatusPendingPayment: true,
	enum.OrderStatusNew:            true,
	enum.OrderStatusInPreparation:  true,
	enum.OrderStatusReady:          true,
	enum.OrderStatusEnRoute:        true,
	enum.OrderStatusIncident:       true,
}

// Validate checks the edge from -> to for an order of type t.
func Validate(t enum.OrderType, from, to enum.OrderStatus, cause Cause) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidTransition, to)
	}
	if to == enum.OrderStatusCancelled {
		if cancellable[from] {
			return nil
		}
		return reject(from, to)
	}

	switch from {
	case enum.OrderStatusPendingPayment:
		switch {
		case to == enum.OrderStatusNew && (cause == CausePayment || cause == CauseApproval):
			return nil
		case to == enum.OrderStatusDelivered && cause == CausePayment && t == enum.OrderTypeDineIn:
			return nil
		}
	case enum.OrderStatusNew:
		if to == enum.OrderStatusInPreparation {
			return nil
		}
	case enum.OrderStatusInPreparation:
		if to == enum.OrderStatusInPreparation || to == enum.OrderStatusReady {
			return nil
		}
	case enum.OrderStatusReady:
		switch {
		case to == enum.OrderStatusEnRoute && t == enum.OrderTypeDelivery:
			return nil
		case to == enum.OrderStatusDelivered && t != enum.OrderTypeDelivery:
			return nil
		}
	case enum.OrderStatusEnRoute:
		switch {
		case to == enum.OrderStatusDelivered:
			return nil
		case (to == enum.OrderStatusIncident || to == enum.OrderStatusReturned) && cause == CauseReport:
			return nil
		}
	case enum.OrderStatusDelivered:
		if (to == enum.OrderStatusIncident || to == enum.OrderStatusReturned) && cause == CauseReport {
			return nil
		}
	case enum.OrderStatusIncident:
		if to == enum.OrderStatusReturned && cause == CauseReport {
			return nil
		}
	}
	return reject(from, to)
}

func reject(from, to enum.OrderStatus) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", apperr.ErrInvalidTransition, from, to)
}

// releasesCourier reports whether reaching s hands the courier back.
func releasesCourier(s enum.OrderStatus) bool {
	switch s {
	case enum.OrderStatusDelivered, enum.OrderStatusCancelled, enum.OrderStatusReturned:
		return true
	}
	return false
}
