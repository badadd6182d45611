package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/pricing"
	"shop-service/pkg/cache"
	"shop-service/pkg/events"
	"shop-service/prometheus"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const orderNumberAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// PlaceOrderInput carries checkout details; the lines come from the cart
type PlaceOrderInput struct {
	ShippingAddress string
	BillingAddress  string
	PaymentMethodID uint
	Notes           string
	IdempotencyKey  string
}

// OrderEvent is the payload of order events
type OrderEvent struct {
	OrderID        uint              `json:"order_id"`
	Number         string            `json:"number"`
	UserID         uint              `json:"user_id"`
	Status         model.OrderStatus `json:"status"`
	PreviousStatus model.OrderStatus `json:"previous_status,omitempty"`
	Total          decimal.Decimal   `json:"total"`
}

// OrderService turns carts into orders and drives the order status machine
type OrderService struct {
	db             *gorm.DB
	cache          *cache.Cache
	publisher      events.Publisher
	log            *zap.Logger
	idempotencyTTL time.Duration
	newNumber      func() string
	now            func() time.Time
}

// NewOrderService builds the service. cache may be nil, which disables idempotency keys.
func NewOrderService(db *gorm.DB, c *cache.Cache, publisher events.Publisher, log *zap.Logger, idempotencyTTL time.Duration) *OrderService {
	gen, err := nanoid.CustomASCII(orderNumberAlphabet, 12)
	if err != nil {
		panic(fmt.Sprintf("order number generator: %v", err))
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &OrderService{
		db:             db,
		cache:          c,
		publisher:      publisher,
		log:            log,
		idempotencyTTL: idempotencyTTL,
		newNumber:      func() string { return "ORD-" + gen() },
		now:            time.Now,
	}
}

// Place converts the user's cart into a pending order. Prices are frozen,
// stock is decremented and the cart is cleared in the same transaction.
func (s *OrderService) Place(ctx context.Context, userID uint, in PlaceOrderInput) (*model.Order, error) {
	defer prometheus.TrackDBOperation("place_order")(time.Now())

	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.BillingAddress = strings.TrimSpace(in.BillingAddress)
	if in.BillingAddress == "" {
		in.BillingAddress = in.ShippingAddress
	}
	fields := map[string]string{}
	if in.ShippingAddress == "" {
		fields["shipping_address"] = "shipping_address is required"
	}
	if in.PaymentMethodID == 0 {
		fields["payment_method_id"] = "payment_method_id is required"
	}
	if len(fields) > 0 {
		return nil, Validation("The given data was invalid", fields)
	}

	release, err := s.claimIdempotencyKey(ctx, userID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var order model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.placeInTx(tx, userID, in, &order)
	})
	if err != nil {
		release()
		return nil, err
	}

	productIDs := make([]uint, len(order.Items))
	for i, item := range order.Items {
		productIDs[i] = item.ProductID
	}
	invalidateProducts(ctx, s.cache, s.log, productIDs...)
	s.reportStock(ctx, productIDs)

	prometheus.RecordOrderStatus(string(order.Status))
	prometheus.RecordOrderTotal(order.Total.InexactFloat64())
	s.log.Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.String("number", order.Number),
		zap.Uint("user_id", userID),
		zap.String("total", order.Total.String()))
	s.publish(ctx, events.OrderCreated, &order, "")

	return &order, nil
}

func (s *OrderService) placeInTx(tx *gorm.DB, userID uint, in PlaceOrderInput, order *model.Order) error {
	var method model.PaymentMethod
	if err := tx.First(&method, in.PaymentMethodID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FieldError("payment_method_id", "payment method does not exist")
		}
		return err
	}
	if !method.IsActive {
		return FieldError("payment_method_id", "payment method is not available")
	}

	var cart model.Cart
	err := tx.Preload("Items").Preload("Coupon").Where("user_id = ?", userID).First(&cart).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if len(cart.Items) == 0 {
		return FieldError("cart", "cart is empty")
	}

	// lock product rows in id order so concurrent checkouts cannot interleave
	ids := make([]uint, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var products []model.Product
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&products).Error
	if err != nil {
		return err
	}
	byID := make(map[uint]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines := make([]pricing.Line, 0, len(cart.Items))
	items := make([]model.OrderItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		p, ok := byID[ci.ProductID]
		if !ok || p.Status != model.ProductActive {
			return FieldError("cart", fmt.Sprintf("product %d is no longer available", ci.ProductID))
		}
		if !p.InStock(ci.Quantity) {
			return FieldError("cart", fmt.Sprintf("insufficient stock for %s", p.Name))
		}
		line := pricing.Line{UnitPrice: p.Price, Quantity: ci.Quantity}
		lines = append(lines, line)
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    ci.Quantity,
			LineTotal:   line.Amount(),
		})
	}

	var discount *pricing.Discount
	if cart.CouponID != nil {
		if cart.Coupon == nil {
			return FieldError("coupon", "the applied coupon no longer exists")
		}
		if err := cart.Coupon.CheckUsable(s.now()); err != nil {
			return &Error{Kind: KindValidation, Message: "the applied coupon is no longer valid",
				Fields: map[string]string{"coupon": err.Error()}, Err: err}
		}
		discount = cart.Coupon.AsDiscount()
	}
	totals := pricing.Compute(lines, discount)

	for _, item := range items {
		res := tx.Model(&model.Product{}).
			Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return FieldError("cart", fmt.Sprintf("insufficient stock for %s", item.ProductName))
		}
	}

	*order = model.Order{
		Number:          s.newNumber(),
		UserID:          userID,
		Status:          model.OrderPending,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Total:           totals.Total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		PaymentMethodID: method.ID,
		CouponID:        cart.CouponID,
		Notes:           strings.TrimSpace(in.Notes),
		Items:           items,
	}
	if cart.Coupon != nil {
		order.CouponCode = cart.Coupon.Code
	}
	if err := tx.Create(order).Error; err != nil {
		return err
	}
	order.PaymentMethod = &method

	return clearCart(tx, userID)
}

// claimIdempotencyKey rejects a replayed key. The returned func frees the key
// when the order could not be placed.
func (s *OrderService) claimIdempotencyKey(ctx context.Context, userID uint, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if s.cache == nil || key == "" {
		return func() {}, nil
	}

	cacheKey := fmt.Sprintf("idempotency:order:%d:%s", userID, key)
	ok, err := s.cache.AcquireOnce(ctx, cacheKey, s.idempotencyTTL)
	if err != nil {
		// without redis the order still goes through, only replay protection is lost
		s.log.Warn("Idempotency check unavailable", zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, Conflict("A request with this Idempotency-Key was already processed")
	}
	return func() {
		if err := s.cache.Release(context.WithoutCancel(ctx), cacheKey); err != nil {
			s.log.Warn("Failed to release idempotency key", zap.String("key", cacheKey), zap.Error(err))
		}
	}, nil
}

// ListForUser returns the user's orders, newest first
func (s *OrderService) ListForUser(ctx context.Context, userID uint, page Page) ([]model.Order, Pagination, error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID), page)
}

// ListAll returns every order, optionally restricted to one status
func (s *OrderService) ListAll(ctx context.Context, status model.OrderStatus, page Page) ([]model.Order, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{})
	if status != "" {
		if !status.Valid() {
			return nil, Pagination{}, FieldError("status", "unknown order status")
		}
		q = q.Where("status = ?", status)
	}
	return s.list(ctx, q, page)
}

func (s *OrderService) list(ctx context.Context, q *gorm.DB, page Page) ([]model.Order, Pagination, error) {
	defer prometheus.TrackDBOperation("list_orders")(time.Now())

	var orders []model.Order
	pagination, err := paginate(q, page, &orders, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at desc").Order("id desc").Preload("Items").Preload("PaymentMethod")
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, pagination, nil
}

// Get returns an order. Non-admin actors only see their own orders.
func (s *OrderService) Get(ctx context.Context, actor Actor, id uint) (*model.Order, error) {
	var order model.Order
	q := s.db.WithContext(ctx).Preload("Items").Preload("PaymentMethod")
	if actor.IsAdmin() {
		q = q.Preload("User")
	} else {
		q = q.Where("user_id = ?", actor.UserID)
	}
	if err := q.First(&order, id).Error; err != nil {
		return nil, notFoundOr(err, "order")
	}
	return &order, nil
}

// Cancel cancels one of the user's own orders while it is pending or processing
func (s *OrderService) Cancel(ctx context.Context, userID, id uint) (*model.Order, error) {
	return s.transition(ctx, id, model.OrderCancelled, func(o *model.Order) error {
		if o.UserID != userID {
			return NotFound("order")
		}
		return nil
	})
}

// UpdateStatus moves an order to status if the status machine allows it
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, FieldError("status", "status must be one of pending, processing, completed, cancelled")
	}
	return s.transition(ctx, id, status, nil)
}

func (s *OrderService) transition(ctx context.Context, id uint, next model.OrderStatus, authorize func(*model.Order) error) (*model.Order, error) {
	var order model.Order
	var previous model.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").First(&order, id).Error
		if err != nil {
			return notFoundOr(err, "order")
		}
		if authorize != nil {
			if err := authorize(&order); err != nil {
				return err
			}
		}
		if !order.Status.CanTransitionTo(next) {
			return FieldError("status", fmt.Sprintf("cannot change order status from %s to %s", order.Status, next))
		}

		previous = order.Status
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).Update("status", next).Error; err != nil {
			return err
		}

		if next == model.OrderCancelled {
			for _, item := range order.Items {
				err := tx.Unscoped().Model(&model.Product{}).
					Where("id = ?", item.ProductID).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = next
	if next == model.OrderCancelled {
		ids := make([]uint, len(order.Items))
		for i, item := range order.Items {
			ids[i] = item.ProductID
		}
		invalidateProducts(ctx, s.cache, s.log, ids...)
		s.reportStock(ctx, ids)
	}

	prometheus.RecordOrderStatus(string(next))
	s.log.Info("Order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))
	s.publish(ctx, events.OrderStatusChanged, &order, previous)

	return &order, nil
}

func (s *OrderService) reportStock(ctx context.Context, ids []uint) {
	if len(ids) == 0 {
		return
	}
	var products []model.Product
	if err := s.db.WithContext(ctx).Unscoped().Select("id", "stock").Where("id IN ?", ids).Find(&products).Error; err != nil {
		s.log.Warn("Failed to read stock levels", zap.Error(err))
		return
	}
	for _, p := range products {
		prometheus.UpdateProductInventory(p.ID, p.Stock)
	}
}

// publish delivers an order event; delivery failures never fail the request
func (s *OrderService) publish(ctx context.Context, eventType string, order *model.Order, previous model.OrderStatus) {
	evt := events.NewEvent(eventType, fmt.Sprintf("order-%d", order.ID), OrderEvent{
		OrderID:        order.ID,
		Number:         order.Number,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
	})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Error("Failed to publish order event",
			zap.String("type", eventType),
			zap.Uint("order_id", order.ID),
			zap.Error(err))
	}
}
