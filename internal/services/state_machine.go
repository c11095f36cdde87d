package services

import (
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
)

// statusRank orders the forward path of the delivery state machine.
// Cancelled sits outside the path and is handled separately.
var statusRank = map[models.OrderStatus]int{
	models.StatusPending:        0,
	models.StatusConfirmed:      1,
	models.StatusPreparing:      2,
	models.StatusOutForDelivery: 3,
	models.StatusDelivered:      4,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s models.OrderStatus) bool {
	_, ok := statusRank[s]
	return ok || s == models.StatusCancelled
}

// NextStatus decides whether actor may move order to requested. It performs
// no I/O and does not modify order.
//
// Forward moves along pending → confirmed → preparing → out_for_delivery →
// delivered may skip steps and are reserved to the owning vendor.
// Cancellation is open to the owning vendor and the owning pharmacy from any
// non-terminal status.
func NextStatus(order *models.Order, actor models.Identity, requested models.OrderStatus) (models.OrderStatus, error) {
	if !ValidStatus(requested) {
		return "", apperr.InvalidTransition("unknown order status %q", requested)
	}

	if requested == models.StatusCancelled {
		if !isOwningVendor(order, actor) && !isOwningPharmacy(order, actor) {
			return "", apperr.Forbidden("not authorized to cancel order %s", order.ID)
		}
		if order.Status.Terminal() {
			return "", apperr.InvalidTransition("cannot cancel order in %s status", order.Status)
		}
		return requested, nil
	}

	if !isOwningVendor(order, actor) {
		return "", apperr.Forbidden("not authorized to update order %s", order.ID)
	}
	if order.Status.Terminal() {
		return "", apperr.InvalidTransition("order %s is already %s", order.ID, order.Status)
	}
	if statusRank[requested] <= statusRank[order.Status] {
		return "", apperr.InvalidTransition("cannot move order from %s to %s", order.Status, requested)
	}
	return requested, nil
}

// ApplyStatus runs NextStatus and, on success, writes the new status into
// order along with the side effects of entering it.
func ApplyStatus(order *models.Order, actor models.Identity, requested models.OrderStatus, now time.Time) error {
	next, err := NextStatus(order, actor, requested)
	if err != nil {
		return err
	}
	order.Status = next
	if next == models.StatusDelivered {
		delivered := now
		order.DeliveryInfo.ActualDeliveryTime = &delivered
	}
	return nil
}

// NextPaymentStatus decides a payment status change. Only admins may change
// payment status; any move between distinct known values is allowed and is
// independent of the delivery status.
func NextPaymentStatus(order *models.Order, actor models.Identity, requested models.PaymentStatus) (models.PaymentStatus, error) {
	if actor.Role != models.RoleAdmin {
		return "", apperr.Forbidden("only admins may update payment status")
	}
	if !requested.Valid() {
		return "", apperr.InvalidTransition("unknown payment status %q", requested)
	}
	if requested == order.PaymentStatus {
		return "", apperr.InvalidTransition("payment status of order %s is already %s", order.ID, requested)
	}
	return requested, nil
}

// CanUpdateDelivery decides whether actor may change the delivery details of
// order. Only the owning vendor may, and only while the order is not terminal.
func CanUpdateDelivery(order *models.Order, actor models.Identity) error {
	if !isOwningVendor(order, actor) {
		return apperr.Forbidden("not authorized to update order %s", order.ID)
	}
	if order.Status.Terminal() {
		return apperr.InvalidTransition("delivery details of %s order %s are final", order.Status, order.ID)
	}
	return nil
}

// CanView reports whether actor may read order.
func CanView(order *models.Order, actor models.Identity) bool {
	return actor.Role == models.RoleAdmin || isOwningVendor(order, actor) || isOwningPharmacy(order, actor)
}

func isOwningVendor(order *models.Order, actor models.Identity) bool {
	return actor.Role == models.RoleVendor && actor.SubjectID == order.VendorID
}

func isOwningPharmacy(order *models.Order, actor models.Identity) bool {
	return actor.Role == models.RolePharmacy && actor.SubjectID == order.PharmacyID
}
