package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shop-service/internal/model"
	"shop-service/pkg/cache"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewInput is the writable part of a review
type ReviewInput struct {
	ProductID uint
	Rating    int
	Content   string
}

// ReviewService manages product reviews
type ReviewService struct {
	db              *gorm.DB
	cache           *cache.Cache
	log             *zap.Logger
	requirePurchase bool
}

// NewReviewService builds the service. With requirePurchase set, only users
// with a completed order containing the product may review it.
func NewReviewService(db *gorm.DB, c *cache.Cache, log *zap.Logger, requirePurchase bool) *ReviewService {
	return &ReviewService{db: db, cache: c, log: log, requirePurchase: requirePurchase}
}

// ListForProduct returns a page of reviews and the product's rating summary
func (s *ReviewService) ListForProduct(ctx context.Context, productID uint, page Page) ([]model.Review, RatingSummary, Pagination, error) {
	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&model.Product{}, productID).Error; err != nil {
		return nil, RatingSummary{}, Pagination{}, notFoundOr(err, "product")
	}

	var reviews []model.Review
	pagination, err := paginate(db.Model(&model.Review{}).Where("product_id = ?", productID), page, &reviews,
		func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at desc").Order("id desc").Preload("User", func(db *gorm.DB) *gorm.DB {
				return db.Select("id", "name")
			})
		})
	if err != nil {
		return nil, RatingSummary{}, Pagination{}, fmt.Errorf("list reviews: %w", err)
	}

	summary, err := ratingSummary(db, productID)
	if err != nil {
		return nil, RatingSummary{}, Pagination{}, err
	}
	return reviews, summary, pagination, nil
}

func (s *ReviewService) Create(ctx context.Context, userID uint, in ReviewInput) (*model.Review, error) {
	if err := validateReview(&in); err != nil {
		return nil, err
	}

	var review model.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Product{}, in.ProductID).Error; err != nil {
			return notFoundOr(err, "product")
		}

		var existing int64
		if err := tx.Model(&model.Review{}).Where("user_id = ? AND product_id = ?", userID, in.ProductID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflict("You have already reviewed this product")
		}

		if s.requirePurchase {
			purchased, err := hasPurchased(tx, userID, in.ProductID)
			if err != nil {
				return err
			}
			if !purchased {
				return Forbidden("Only customers who received this product can review it")
			}
		}

		review = model.Review{UserID: userID, ProductID: in.ProductID, Rating: in.Rating, Content: in.Content}
		return tx.Create(&review).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateProducts(ctx, s.cache, s.log, in.ProductID)
	s.log.Info("Review created", zap.Uint("review_id", review.ID), zap.Uint("product_id", in.ProductID), zap.Int("rating", in.Rating))
	return &review, nil
}

// Update changes rating and content; only the author or an admin may do so
func (s *ReviewService) Update(ctx context.Context, actor Actor, id uint, in ReviewInput) (*model.Review, error) {
	var review model.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return notFoundOr(err, "review")
		}
		if !actor.canModify(review.UserID) {
			return Forbidden("You can only edit your own reviews")
		}
		in.ProductID = review.ProductID
		if err := validateReview(&in); err != nil {
			return err
		}
		review.Rating = in.Rating
		review.Content = in.Content
		return tx.Model(&review).Updates(map[string]interface{}{
			"rating":  review.Rating,
			"content": review.Content,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateProducts(ctx, s.cache, s.log, review.ProductID)
	return &review, nil
}

func (s *ReviewService) Delete(ctx context.Context, actor Actor, id uint) error {
	var review model.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return notFoundOr(err, "review")
		}
		if !actor.canModify(review.UserID) {
			return Forbidden("You can only delete your own reviews")
		}
		return tx.Delete(&review).Error
	})
	if err != nil {
		return err
	}

	invalidateProducts(ctx, s.cache, s.log, review.ProductID)
	return nil
}

func validateReview(in *ReviewInput) error {
	in.Content = strings.TrimSpace(in.Content)

	fields := map[string]string{}
	if in.ProductID == 0 {
		fields["product_id"] = "product_id is required"
	}
	if in.Rating < 1 || in.Rating > 5 {
		fields["rating"] = "rating must be between 1 and 5"
	}
	if len(fields) > 0 {
		return Validation("The given data was invalid", fields)
	}
	return nil
}

func hasPurchased(tx *gorm.DB, userID, productID uint) (bool, error) {
	var item model.OrderItem
	err := tx.Select("order_items.id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?", userID, model.OrderCompleted, productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
