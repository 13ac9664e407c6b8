package models

// DefaultCategory is applied when a product is created without one.
const DefaultCategory = "General"

// Product is a catalog entry looked up by its barcode at the till.
type Product struct {
	BaseModel
	Barcode     string  `json:"barcode" gorm:"uniqueIndex;type:varchar(20);not null"`
	Name        string  `json:"name" gorm:"type:varchar(100);not null"`
	Description string  `json:"description,omitempty" gorm:"type:varchar(500)"`
	Price       float64 `json:"price" gorm:"not null"`
	Category    string  `json:"category" gorm:"type:varchar(50);default:General;index"`
	Stock       int     `json:"stock" gorm:"not null;default:0"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	// IsActive is the soft-delete flag. Inactive products stay in storage.
	IsActive bool `json:"isActive" gorm:"not null;default:true;index"`
}
