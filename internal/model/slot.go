package model

import (
	"strings"
	"time"
)

// Category classifies a parking slot.  The category decides which
// surcharge is added to the hourly rate when a booking is priced.
type Category string

const (
	CategoryRegular      Category = "Regular"
	CategoryTwoWheeler   Category = "Two-Wheeler"
	CategoryTwoWheelerEV Category = "Two-Wheeler-EV"
	CategoryEV           Category = "EV"
	CategoryVIP          Category = "VIP"
	CategoryHandicap     Category = "Handicap"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryRegular,
	CategoryTwoWheeler,
	CategoryTwoWheelerEV,
	CategoryEV,
	CategoryVIP,
	CategoryHandicap,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Slot represents a single physical parking space on a floor.  This
// struct corresponds to a row in the `slots` table.
//
// Fields:
//  ID         – primary key identifier.
//  FloorID    – floor that contains the slot.
//  SlotNumber – label of the slot, unique within its floor (e.g. A-12).
//  Category   – one of the fixed categories.
//  Occupied   – cached "is an ACTIVE booking holding the slot right now".
//               Only booking transitions and reconciliation write it.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Slot struct {
	ID         uint64    // slots.id
	FloorID    uint64    // slots.floor_id
	SlotNumber string    // slots.slot_number
	Category   Category  // slots.category
	Occupied   bool      // slots.occupied
	CreatedAt  time.Time // slots.created_at
	UpdatedAt  time.Time // slots.updated_at
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding spaces.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, k := range Categories {
		if strings.EqualFold(s, string(k)) {
			return k, true
		}
	}
	return "", false
}
