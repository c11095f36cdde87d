// Package notify routes order events to vendor and pharmacy channels.
//
// Delivery is fire-and-forget and at-most-once: a subscriber that is not
// connected, or whose buffer is full, misses the event. Nothing is replayed.
package notify

import (
	"time"

	"pharmahub/internal/models"
)

// Event names emitted by the order engine.
const (
	EventNewOrder                     = "newOrder"
	EventOrderStatusUpdated           = "orderStatusUpdated"
	EventOrderCancelled               = "orderCancelled"
	EventDeliveryLocationUpdated      = "deliveryLocationUpdated"
	EventDeliveryPersonAssigned       = "deliveryPersonAssigned"
	EventEstimatedDeliveryTimeUpdated = "estimatedDeliveryTimeUpdated"
	EventPaymentStatusUpdated         = "paymentStatusUpdated"
	EventStockAlert                   = "stockAlert"
)

// Event is one message addressed to a channel.
type Event struct {
	Channel string      `json:"channel"`
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Dispatcher sends an event to every current subscriber of a channel.
// Implementations must not block the caller on slow subscribers and must not
// report delivery failures back to it.
type Dispatcher interface {
	Dispatch(channel, event string, payload interface{})
}

// Sink accepts fully formed events, e.g. ones relayed from a message broker.
type Sink interface {
	Deliver(evt Event)
}

// VendorChannel names the channel a vendor's subscribers join.
func VendorChannel(vendorID string) string {
	return "vendor-" + vendorID
}

// PharmacyChannel names the channel a pharmacy's subscribers join.
func PharmacyChannel(pharmacyID string) string {
	return "pharmacy-" + pharmacyID
}

// ChannelFor returns the channel an identity is auto-joined to. Admins have none.
func ChannelFor(identity models.Identity) (string, bool) {
	switch identity.Role {
	case models.RoleVendor:
		return VendorChannel(identity.SubjectID), true
	case models.RolePharmacy:
		return PharmacyChannel(identity.SubjectID), true
	}
	return "", false
}

// NopDispatcher drops every event.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(string, string, interface{}) {}
