// Package presale defines presale order commitments.
package presale

import "time"

// Status is the lifecycle state of an order. The transition booked -> released
// is one-way; a released order can never be re-released.
type Status string

const (
	StatusBooked   Status = "booked"
	StatusReleased Status = "released"
)

// Order is a pre-purchase commitment for tokens. Booking reserves nothing;
// payment is verified out-of-band and a trusted operator releases the order,
// which credits the buyer from the treasury.
type Order struct {
	ID         string
	UserID     int64
	Amount     int64
	Cost       int64
	Status     Status
	CreatedAt  time.Time
	ReleasedAt time.Time
}
