package catalog

import (
	"time"
)

type Category struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Price      int64     `gorm:"not null" json:"price"`
	Stock      int       `gorm:"not null" json:"stock"`
	CategoryID *string   `gorm:"type:uuid" json:"categoryId"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	// OptionGroups belong to this product only.
	OptionGroups []OptionGroup `gorm:"foreignKey:ProductID" json:"variants"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type OptionGroup struct {
	ID        string       `gorm:"primaryKey;type:uuid" json:"id"`
	ProductID string       `gorm:"type:uuid;not null" json:"productId"`
	Name      string       `gorm:"not null" json:"name"`
	Required  bool         `json:"required"`
	Items     []OptionItem `gorm:"foreignKey:GroupID" json:"items"`
}

type OptionItem struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	GroupID string `gorm:"type:uuid;not null" json:"groupId"`
	Name    string `gorm:"not null" json:"name"`
	Price   int64  `json:"price"`
}

type User struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Email     string    `gorm:"not null;uniqueIndex" json:"email"`
	Name      string    `json:"name"`
	Role      string    `gorm:"not null" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}
