package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/pricing"
	"shop-service/prometheus"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CouponInput is the writable part of a coupon. A nil IsActive means active.
type CouponInput struct {
	Code      string
	Type      pricing.DiscountType
	Discount  decimal.Decimal
	StartsAt  *time.Time
	ExpiresAt *time.Time
	IsActive  *bool
}

// CouponService is the admin side of coupons
type CouponService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCouponService(db *gorm.DB, log *zap.Logger) *CouponService {
	return &CouponService{db: db, log: log}
}

func (s *CouponService) List(ctx context.Context, page Page) ([]model.Coupon, Pagination, error) {
	var coupons []model.Coupon
	pagination, err := paginate(s.db.WithContext(ctx).Model(&model.Coupon{}), page, &coupons, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at desc").Order("id desc")
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, pagination, nil
}

func (s *CouponService) Get(ctx context.Context, id uint) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := s.db.WithContext(ctx).First(&coupon, id).Error; err != nil {
		return nil, notFoundOr(err, "coupon")
	}
	return &coupon, nil
}

func (s *CouponService) Create(ctx context.Context, in CouponInput) (*model.Coupon, error) {
	defer prometheus.TrackDBOperation("create_coupon")(time.Now())

	if err := validateCoupon(&in); err != nil {
		return nil, err
	}

	coupon := model.Coupon{}
	applyCouponInput(&coupon, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueCouponCode(tx, coupon.Code, 0); err != nil {
			return err
		}
		return tx.Create(&coupon).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Coupon created", zap.Uint("coupon_id", coupon.ID), zap.String("code", coupon.Code))
	return &coupon, nil
}

func (s *CouponService) Update(ctx context.Context, id uint, in CouponInput) (*model.Coupon, error) {
	if err := validateCoupon(&in); err != nil {
		return nil, err
	}

	var coupon model.Coupon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&coupon, id).Error; err != nil {
			return notFoundOr(err, "coupon")
		}
		applyCouponInput(&coupon, in)
		if err := uniqueCouponCode(tx, coupon.Code, id); err != nil {
			return err
		}
		return tx.Model(&coupon).Updates(map[string]interface{}{
			"code":       coupon.Code,
			"type":       coupon.Type,
			"discount":   coupon.Discount,
			"starts_at":  coupon.StartsAt,
			"expires_at": coupon.ExpiresAt,
			"is_active":  coupon.IsActive,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Delete removes a coupon and detaches it from carts. Orders keep their code snapshot.
func (s *CouponService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var coupon model.Coupon
		if err := tx.First(&coupon, id).Error; err != nil {
			return notFoundOr(err, "coupon")
		}
		if err := tx.Model(&model.Cart{}).Where("coupon_id = ?", id).Update("coupon_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&coupon).Error
	})
}

func validateCoupon(in *CouponInput) error {
	in.Code = normalizeCode(in.Code)

	fields := map[string]string{}
	if in.Code == "" {
		fields["code"] = "code is required"
	}
	if !in.Type.Valid() {
		fields["type"] = "type must be percentage or fixed"
	}
	if in.Discount.IsNegative() {
		fields["discount"] = "discount must not be negative"
	} else if in.Type == pricing.Percentage && in.Discount.GreaterThan(decimal.NewFromInt(100)) {
		fields["discount"] = "a percentage discount cannot exceed 100"
	} else if in.Discount.Exponent() < -2 {
		fields["discount"] = "discount must have at most two decimal places"
	}
	if in.StartsAt != nil && in.ExpiresAt != nil && in.ExpiresAt.Before(*in.StartsAt) {
		fields["expires_at"] = "expires_at must not be before starts_at"
	}

	if len(fields) > 0 {
		return Validation("The given data was invalid", fields)
	}
	return nil
}

func applyCouponInput(c *model.Coupon, in CouponInput) {
	c.Code = in.Code
	c.Type = in.Type
	c.Discount = in.Discount
	c.StartsAt = in.StartsAt
	c.ExpiresAt = in.ExpiresAt
	c.IsActive = in.IsActive == nil || *in.IsActive
}

func uniqueCouponCode(tx *gorm.DB, code string, excludeID uint) error {
	var count int64
	q := tx.Model(&model.Coupon{}).Where("code = ?", code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return Conflict("Coupon with this code already exists")
	}
	return nil
}
