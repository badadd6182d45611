package service

import (
	"context"
	"fmt"

	"shop-service/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WishlistService manages the set of products a user saved
type WishlistService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWishlistService(db *gorm.DB, log *zap.Logger) *WishlistService {
	return &WishlistService{db: db, log: log}
}

func (s *WishlistService) List(ctx context.Context, userID uint) ([]model.WishlistItem, error) {
	var items []model.WishlistItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Product.Images", imagesInOrder).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	return items, nil
}

// Add saves a product. Adding a saved product again is a no-op; created
// reports whether a new entry was made.
func (s *WishlistService) Add(ctx context.Context, userID, productID uint) (item *model.WishlistItem, created bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Product{}, productID).Error; err != nil {
			return notFoundOr(err, "product")
		}

		entry := model.WishlistItem{UserID: userID, ProductID: productID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		var saved model.WishlistItem
		if err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&saved).Error; err != nil {
			return err
		}
		item = &saved
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return item, created, nil
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID).Delete(&model.WishlistItem{})
	if res.Error != nil {
		return fmt.Errorf("remove wishlist item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound("wishlist item")
	}
	return nil
}
