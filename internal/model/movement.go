package model

import "time"

// Movement is an audit log entry describing a change to an item.
type Movement struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields (not always populated).
	Username string `json:"username,omitempty"`
}

// Movement actions.
const (
	MovementRegistered    = "registered"
	MovementUpdated       = "updated"
	MovementStatusChanged = "status_changed"
	MovementRelocated     = "relocated"
	MovementCodesReissued = "codes_reissued"
	MovementDeleted       = "deleted"
	MovementPhotoAdded    = "photo_added"
)
