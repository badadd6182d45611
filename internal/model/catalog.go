package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductStatus controls storefront visibility
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

// Category is a top-level catalog group. ParentID allows nesting categories.
type Category struct {
	ID            uint          `json:"id" gorm:"primarykey"`
	Name          string        `json:"name" gorm:"type:varchar(100);not null"`
	Slug          string        `json:"slug" gorm:"type:varchar(120);uniqueIndex;not null"`
	Description   string        `json:"description" gorm:"type:text"`
	ParentID      *uint         `json:"parent_id" gorm:"index"`
	Parent        *Category     `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children      []Category    `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	SubCategories []SubCategory `json:"subcategories,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// SubCategory is the second catalog level; products hang off it
type SubCategory struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Slug        string    `json:"slug" gorm:"type:varchar(120);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CategoryID  uint      `json:"category_id" gorm:"index;not null"`
	Category    *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SubCategory) TableName() string {
	return "subcategories"
}

// Tag is a free-form product label
type Tag struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"`
	Slug      string    `json:"slug" gorm:"type:varchar(60);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a sellable item. Deleted products stay readable from order history.
type Product struct {
	ID            uint            `json:"id" gorm:"primarykey"`
	Name          string          `json:"name" gorm:"type:varchar(255);not null"`
	Slug          string          `json:"slug" gorm:"type:varchar(280);index;not null"`
	Description   string          `json:"description" gorm:"type:text"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock         int             `json:"stock" gorm:"not null;default:0"`
	Status        ProductStatus   `json:"status" gorm:"type:varchar(20);not null;index"`
	SubCategoryID uint            `json:"subcategory_id" gorm:"column:subcategory_id;index;not null"`
	SubCategory   *SubCategory    `json:"subcategory,omitempty" gorm:"foreignKey:SubCategoryID"`
	Tags          []Tag           `json:"tags,omitempty" gorm:"many2many:product_tags"`
	Images        []ProductImage  `json:"images,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"-" gorm:"index"`
}

// InStock reports whether quantity units can be sold
func (p *Product) InStock(quantity int) bool {
	return p.Stock >= quantity
}

// ProductImage is a stored image URL for a product
type ProductImage struct {
	ID        uint   `json:"id" gorm:"primarykey"`
	ProductID uint   `json:"product_id" gorm:"index;not null"`
	URL       string `json:"url" gorm:"type:varchar(500);not null"`
	Position  int    `json:"position" gorm:"not null;default:0"`
}
