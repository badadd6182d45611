package model

import (
	"time"
)

// Review is a user's rating of a product; one per user and product
type Review struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_review_user_product;not null"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	ProductID uint      `json:"product_id" gorm:"uniqueIndex:idx_review_user_product;index;not null"`
	Rating    int       `json:"rating" gorm:"not null"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WishlistItem marks a product saved by a user
type WishlistItem struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_wishlist_user_product;not null"`
	ProductID uint      `json:"product_id" gorm:"uniqueIndex:idx_wishlist_user_product;not null"`
	Product   *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `json:"created_at"`
}

func (WishlistItem) TableName() string {
	return "wishlists"
}

// ContactMessage is a message sent through the storefront contact form
type ContactMessage struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	Email     string     `json:"email" gorm:"type:varchar(255);not null"`
	Subject   string     `json:"subject" gorm:"type:varchar(255)"`
	Message   string     `json:"message" gorm:"type:text;not null"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (ContactMessage) TableName() string {
	return "contacts"
}

// PaymentMethod is a checkout option configured by admins
type PaymentMethod struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Code        string    `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// All lists every model for migrations
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&SubCategory{},
		&Tag{},
		&Product{},
		&ProductImage{},
		&PaymentMethod{},
		&Coupon{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Review{},
		&WishlistItem{},
		&ContactMessage{},
	}
}
