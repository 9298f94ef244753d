package model

// Stats summarizes the live item set.
type Stats struct {
	TotalItems    int            `json:"total_items"`
	TotalQuantity int            `json:"total_quantity"`
	WithCodes     int            `json:"with_codes"`
	ByCategory    map[string]int `json:"by_category"`
	ByStatus      map[string]int `json:"by_status"`
	ByLocation    map[string]int `json:"by_location"`
	// LowStock counts items with a quantity below LowStockThreshold.
	LowStock int    `json:"low_stock"`
	Recent   []Item `json:"recent"`
}

// LowStockThreshold is the quantity under which an item counts as low stock.
const LowStockThreshold = 5

// RecentLimit is how many recently created items Stats carries.
const RecentLimit = 5
