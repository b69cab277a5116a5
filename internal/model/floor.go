package model

import "time"

// Floor groups slots of a parking building.  TotalSlots is maintained by
// the slot administration code whenever slots are added or removed.
// AvailableSlots is not stored; it is filled in when floors are listed
// for clients.
type Floor struct {
	ID             uint64    // floors.id
	Name           string    // floors.name
	Details        string    // floors.details
	TotalSlots     int       // floors.total_slots
	AvailableSlots int       // computed, not persisted
	CreatedAt      time.Time // floors.created_at
	UpdatedAt      time.Time // floors.updated_at
}
