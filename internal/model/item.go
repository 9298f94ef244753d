package model

import "time"

// Item is a registered inventory item together with its identifiers.
type Item struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	CategoryRaw  string     `json:"category_raw,omitempty"`
	CategoryKey  string     `json:"category_key"`
	Quantity     int        `json:"quantity"`
	Status       string     `json:"status"`
	Location     string     `json:"location,omitempty"`
	Brand        string     `json:"brand,omitempty"`
	Model        string     `json:"model,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	MnemonicCode string     `json:"mnemonic_code,omitempty"`
	NumericCode  string     `json:"numeric_code,omitempty"`
	ScanPayload  string     `json:"scan_payload,omitempty"`
	ImageMime    string     `json:"image_mime,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Item statuses.
const (
	ItemStatusActive   = "active"
	ItemStatusInRepair = "in-repair"
	ItemStatusDamaged  = "damaged"
	ItemStatusLost     = "lost"
	ItemStatusRetired  = "retired"
)

// ValidItemStatus reports whether s is one of the known item statuses.
func ValidItemStatus(s string) bool {
	switch s {
	case ItemStatusActive, ItemStatusInRepair, ItemStatusDamaged, ItemStatusLost, ItemStatusRetired:
		return true
	}
	return false
}
