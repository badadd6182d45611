package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/pricing"
	"shop-service/prometheus"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is a cart item priced at the product's current price
type CartLine struct {
	ID        uint                `json:"id"`
	ProductID uint                `json:"product_id"`
	Name      string              `json:"name"`
	Slug      string              `json:"slug"`
	Status    model.ProductStatus `json:"status"`
	Stock     int                 `json:"stock"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	Quantity  int                 `json:"quantity"`
	LineTotal decimal.Decimal     `json:"line_total"`
}

// CartView is the cart as shown to its owner, with totals
type CartView struct {
	ID          uint          `json:"id,omitempty"`
	Items       []CartLine    `json:"items"`
	Coupon      *model.Coupon `json:"coupon"`
	CouponError string        `json:"coupon_error,omitempty"`
	pricing.Totals
}

// CartService manages the per-user cart and its applied coupon
type CartService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewCartService(db *gorm.DB, log *zap.Logger) *CartService {
	return &CartService{db: db, log: log, now: time.Now}
}

// GetCart returns the user's cart. A user without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	return s.view(s.db.WithContext(ctx), userID)
}

func (s *CartService) view(db *gorm.DB, userID uint) (*CartView, error) {
	cart, err := loadCart(db, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CartView{Items: []CartLine{}, Totals: pricing.Compute(nil, nil)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return buildCartView(cart, s.now()), nil
}

func loadCart(db *gorm.DB, userID uint) (*model.Cart, error) {
	var cart model.Cart
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id asc") }).
		Preload("Items.Product").
		Preload("Coupon").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func buildCartView(cart *model.Cart, now time.Time) *CartView {
	view := &CartView{ID: cart.ID, Items: make([]CartLine, 0, len(cart.Items)), Coupon: cart.Coupon}

	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Product == nil {
			continue
		}
		line := pricing.Line{UnitPrice: item.Product.Price, Quantity: item.Quantity}
		lines = append(lines, line)
		view.Items = append(view.Items, CartLine{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Slug:      item.Product.Slug,
			Status:    item.Product.Status,
			Stock:     item.Product.Stock,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
			LineTotal: line.Amount(),
		})
	}

	var discount *pricing.Discount
	if cart.Coupon != nil {
		if err := cart.Coupon.CheckUsable(now); err != nil {
			view.CouponError = err.Error()
		} else {
			discount = cart.Coupon.AsDiscount()
		}
	}
	view.Totals = pricing.Compute(lines, discount)
	return view
}

// ensureCart returns the user's cart, creating it on first use
func ensureCart(tx *gorm.DB, userID uint) (*model.Cart, error) {
	cart := model.Cart{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cart).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds quantity units of a product, incrementing the existing line if there is one
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, FieldError("quantity", "quantity must be at least 1")
	}

	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := sellableProduct(tx, productID)
		if err != nil {
			return err
		}
		cart, err := ensureCart(tx, userID)
		if err != nil {
			return err
		}

		var item model.CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
		switch {
		case err == nil:
			if !product.InStock(item.Quantity + quantity) {
				return stockError(product, item.Quantity)
			}
			if err := tx.Model(&item).Update("quantity", item.Quantity+quantity).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !product.InStock(quantity) {
				return stockError(product, 0)
			}
			item = model.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		default:
			return err
		}

		view, err = s.view(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCartOperation("add_item")
	return view, nil
}

// UpdateItem sets the quantity of one of the user's cart lines
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uint, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, FieldError("quantity", "quantity must be at least 1")
	}

	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := ownedItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		product, err := sellableProduct(tx, item.ProductID)
		if err != nil {
			return err
		}
		if !product.InStock(quantity) {
			return stockError(product, 0)
		}
		if err := tx.Model(item).Update("quantity", quantity).Error; err != nil {
			return err
		}
		view, err = s.view(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCartOperation("update_item")
	return view, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) (*CartView, error) {
	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := ownedItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return err
		}
		view, err = s.view(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCartOperation("remove_item")
	return view, nil
}

// Clear empties the cart and detaches its coupon
func (s *CartService) Clear(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return clearCart(tx, userID)
	})
	if err != nil {
		return err
	}
	prometheus.RecordCartOperation("clear")
	return nil
}

func clearCart(tx *gorm.DB, userID uint) error {
	var cart model.Cart
	err := tx.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
		return err
	}
	return tx.Model(&cart).Update("coupon_id", nil).Error
}

// ApplyCoupon attaches a usable coupon to the cart. The cart is not changed
// when the code is unknown, inactive or outside its validity window.
func (s *CartService) ApplyCoupon(ctx context.Context, userID uint, code string) (*CartView, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, FieldError("code", "code is required")
	}

	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var coupon model.Coupon
		if err := tx.Where("code = ?", code).First(&coupon).Error; err != nil {
			return notFoundOr(err, "coupon")
		}
		if err := coupon.CheckUsable(s.now()); err != nil {
			return &Error{Kind: KindValidation, Message: "Coupon cannot be applied", Fields: map[string]string{"code": err.Error()}, Err: err}
		}

		cart, err := ensureCart(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(cart).Update("coupon_id", coupon.ID).Error; err != nil {
			return err
		}
		view, err = s.view(tx, userID)
		return err
	})
	if err != nil {
		prometheus.RecordCouponApply(couponOutcome(err))
		s.log.Info("Coupon rejected", zap.String("code", code), zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	prometheus.RecordCouponApply("applied")
	return view, nil
}

// RemoveCoupon detaches the coupon; the coupon itself is kept
func (s *CartService) RemoveCoupon(ctx context.Context, userID uint) (*CartView, error) {
	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Cart{}).Where("user_id = ?", userID).Update("coupon_id", nil).Error
		if err != nil {
			return err
		}
		view, err = s.view(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCartOperation("remove_coupon")
	return view, nil
}

func couponOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrCouponInactive):
		return "inactive"
	case errors.Is(err, model.ErrCouponNotStarted):
		return "not_started"
	case errors.Is(err, model.ErrCouponExpired):
		return "expired"
	case KindOf(err) == KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func ownedItem(tx *gorm.DB, userID, itemID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := tx.Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		return nil, notFoundOr(err, "cart item")
	}
	return &item, nil
}

func sellableProduct(tx *gorm.DB, productID uint) (*model.Product, error) {
	var product model.Product
	if err := tx.First(&product, productID).Error; err != nil {
		return nil, notFoundOr(err, "product")
	}
	if product.Status != model.ProductActive {
		return nil, FieldError("product_id", "product is not available")
	}
	return &product, nil
}

func stockError(p *model.Product, inCart int) error {
	msg := fmt.Sprintf("only %d units of %s are available", p.Stock, p.Name)
	if inCart > 0 {
		msg = fmt.Sprintf("%s and %d are already in your cart", msg, inCart)
	}
	return FieldError("quantity", msg)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
