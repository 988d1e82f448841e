package models

import "time"

// Sweet represents an inventory item in the shop.
type Sweet struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"type:varchar(255);index"`
	Category    string    `json:"category" gorm:"type:varchar(100);index"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// SweetPatch carries a partial update. Nil fields keep their stored value.
type SweetPatch struct {
	Name        *string
	Category    *string
	Price       *float64
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p SweetPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil && p.Description == nil
}

// SearchFilter narrows a catalog search. Zero values mean "no constraint".
type SearchFilter struct {
	Text     string
	Category string
	MaxPrice *float64
}

// StockLine is one requested decrement within a checkout.
type StockLine struct {
	SweetID  uint `json:"id"`
	Quantity int  `json:"quantity"`
}

// StockResult is the outcome of a single successful decrement.
type StockResult struct {
	SweetID   uint    `json:"id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Remaining int     `json:"remaining"`
}

// Receipt summarizes a completed checkout.
type Receipt struct {
	OrderRef string        `json:"orderRef"`
	Lines    []StockResult `json:"lines"`
	Total    float64       `json:"total"`
}
