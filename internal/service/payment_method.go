package service

import (
	"context"
	"fmt"
	"strings"

	"shop-service/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentMethodInput is the writable part of a payment method. A nil IsActive means active.
type PaymentMethodInput struct {
	Name        string
	Code        string
	Description string
	IsActive    *bool
}

type PaymentMethodService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPaymentMethodService(db *gorm.DB, log *zap.Logger) *PaymentMethodService {
	return &PaymentMethodService{db: db, log: log}
}

// List returns payment methods ordered by name; activeOnly hides disabled ones
func (s *PaymentMethodService) List(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	q := s.db.WithContext(ctx).Order("name asc")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var methods []model.PaymentMethod
	if err := q.Find(&methods).Error; err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return methods, nil
}

func (s *PaymentMethodService) Get(ctx context.Context, id uint) (*model.PaymentMethod, error) {
	var method model.PaymentMethod
	if err := s.db.WithContext(ctx).First(&method, id).Error; err != nil {
		return nil, notFoundOr(err, "payment method")
	}
	return &method, nil
}

func (s *PaymentMethodService) Create(ctx context.Context, in PaymentMethodInput) (*model.PaymentMethod, error) {
	if err := validatePaymentMethod(&in); err != nil {
		return nil, err
	}

	method := model.PaymentMethod{
		Name:        in.Name,
		Code:        in.Code,
		Description: in.Description,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniquePaymentCode(tx, method.Code, 0); err != nil {
			return err
		}
		return tx.Create(&method).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment method created", zap.Uint("payment_method_id", method.ID), zap.String("code", method.Code))
	return &method, nil
}

func (s *PaymentMethodService) Update(ctx context.Context, id uint, in PaymentMethodInput) (*model.PaymentMethod, error) {
	if err := validatePaymentMethod(&in); err != nil {
		return nil, err
	}

	var method model.PaymentMethod
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&method, id).Error; err != nil {
			return notFoundOr(err, "payment method")
		}
		if err := uniquePaymentCode(tx, in.Code, id); err != nil {
			return err
		}
		method.Name = in.Name
		method.Code = in.Code
		method.Description = in.Description
		method.IsActive = in.IsActive == nil || *in.IsActive
		return tx.Model(&method).Updates(map[string]interface{}{
			"name":        method.Name,
			"code":        method.Code,
			"description": method.Description,
			"is_active":   method.IsActive,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &method, nil
}

// Delete removes an unused payment method. Methods referenced by orders
// must be deactivated instead.
func (s *PaymentMethodService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var method model.PaymentMethod
		if err := tx.First(&method, id).Error; err != nil {
			return notFoundOr(err, "payment method")
		}
		var orders int64
		if err := tx.Model(&model.Order{}).Where("payment_method_id = ?", id).Count(&orders).Error; err != nil {
			return err
		}
		if orders > 0 {
			return Conflict("Payment method is used by existing orders; deactivate it instead")
		}
		return tx.Delete(&method).Error
	})
}

func validatePaymentMethod(in *PaymentMethodInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "name is required"
	}
	if in.Code == "" {
		fields["code"] = "code is required"
	}
	if len(fields) > 0 {
		return Validation("The given data was invalid", fields)
	}
	return nil
}

func uniquePaymentCode(tx *gorm.DB, code string, excludeID uint) error {
	var count int64
	q := tx.Model(&model.PaymentMethod{}).Where("code = ?", code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return Conflict("Payment method with this code already exists")
	}
	return nil
}
