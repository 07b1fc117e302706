package domain

import (
	"time"
)

// CartItem is a single activity line in a user's cart. UnitPrice is expressed
// in minor currency units (cents). Cart items are destroyed on fulfillment.
type CartItem struct {
	ID           string
	UserID       string
	ActivityName string
	UnitPrice    int64
	Quantity     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subtotal returns unit price times quantity for the line.
func (i CartItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Perk is the discount rule attached to a voucher. Exactly one of
// FixedDiscount and PercentDiscount is nonzero; the two modes are mutually
// exclusive. Thresholds gate eligibility: MinSpend in cents, MinGroupSize in
// booked seats.
type Perk struct {
	ID              string
	Name            string
	MinSpend        int64
	MinGroupSize    int
	FixedDiscount   int64
	PercentDiscount float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Voucher is a single-use, user-owned redemption of one perk. It is deleted
// once redeemed during a completed checkout.
type Voucher struct {
	ID        string
	UserID    string
	PerkID    string
	CreatedAt time.Time
}

// Order is the immutable record of one fulfilled cart item.
type Order struct {
	ID           string
	UserID       string
	ActivityName string
	Quantity     int
	TotalPrice   int64
	CreatedAt    time.Time
}

// User carries the loyalty state mutated by fulfillment and tier
// progression. TotalSpent and TotalBookings hold the overflow accumulated
// since the last tier upgrade, not lifetime absolutes.
type User struct {
	ID            string
	DisplayName   string
	Email         string
	TotalSpent    int64
	TotalBookings int
	TierID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tier is one loyalty level. Position is dense and strictly ordered (1..N).
// TierBookings and TierSpendings are the overflow needed to reach the NEXT
// tier, not absolute floors.
type Tier struct {
	ID            string
	Name          string
	Position      int
	TierBookings  int
	TierSpendings int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProcessedEvent is one entry in the payment-event ledger used to recognise
// gateway redeliveries.
type ProcessedEvent struct {
	EventID     string
	SessionID   string
	UserID      string
	Amount      int64
	OrderIDs    []string
	ProcessedAt time.Time
}
