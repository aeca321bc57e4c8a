package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Restaurant struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	OwnerID     uint       `json:"owner_id" gorm:"uniqueIndex;not null"`
	Owner       User       `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Name        string     `json:"name" gorm:"not null"`
	Cuisine     string     `json:"cuisine"`
	Address     string     `json:"address"`
	Description string     `json:"description"`
	IsOpen      bool       `json:"is_open" gorm:"default:true"`
	MenuItems   []MenuItem `json:"menu_items,omitempty" gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type MenuItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"index;not null"`
	Name         string          `json:"name" gorm:"not null"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Category     string          `json:"category"`
	IsAvailable  bool            `json:"is_available" gorm:"default:true"`
	IsVeg        bool            `json:"is_veg" gorm:"default:false"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	// order_items keep referencing a removed item, so removal is soft
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
