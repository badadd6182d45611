package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/pricing"
	"shop-service/pkg/events"
	"shop-service/pkg/events/eventstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderFixture struct {
	db       *gorm.DB
	catalog  catalog
	carts    *CartService
	orders   *OrderService
	recorder *eventstest.Recorder
	user     model.User
}

func setupOrders(t *testing.T) *orderFixture {
	t.Helper()
	db := setupTestDB(t)
	recorder := &eventstest.Recorder{}
	return &orderFixture{
		db:       db,
		catalog:  seedCatalog(t, db),
		carts:    NewCartService(db, zap.NewNop()),
		orders:   NewOrderService(db, nil, recorder, zap.NewNop(), time.Hour),
		recorder: recorder,
		user:     createUser(t, db, "buyer@example.com", model.RoleCustomer),
	}
}

func (f *orderFixture) checkout(t *testing.T) *model.Order {
	t.Helper()
	order, err := f.orders.Place(context.Background(), f.user.ID, PlaceOrderInput{
		ShippingAddress: "1 Main St",
		PaymentMethodID: f.catalog.method.ID,
	})
	require.NoError(t, err)
	return order
}

func TestPlaceOrder(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	phone := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
	cable := createProduct(t, f.db, f.catalog.subcategory.ID, "Cable", "5.50", 4)
	coupon := createCoupon(t, f.db, "TENOFF", pricing.Percentage, "10", true, nil, nil)

	_, err := f.carts.AddItem(ctx, f.user.ID, phone.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, f.user.ID, cable.ID, 4)
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, f.user.ID, "tenoff")
	require.NoError(t, err)

	order, err := f.orders.Place(ctx, f.user.ID, PlaceOrderInput{
		ShippingAddress: "  1 Main St ",
		PaymentMethodID: f.catalog.method.ID,
		Notes:           "leave at the door",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.Number, "ORD-"))
	assert.Len(t, order.Number, len("ORD-")+12)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, "1 Main St", order.ShippingAddress)
	assert.Equal(t, "1 Main St", order.BillingAddress)
	assert.Equal(t, "TENOFF", order.CouponCode)
	require.NotNil(t, order.CouponID)
	assert.Equal(t, coupon.ID, *order.CouponID)
	assert.Truef(t, dec("222").Equal(order.Subtotal), "subtotal %s", order.Subtotal)
	assert.Truef(t, dec("22.2").Equal(order.Discount), "discount %s", order.Discount)
	assert.Truef(t, dec("199.8").Equal(order.Total), "total %s", order.Total)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Phone", order.Items[0].ProductName)
	assert.True(t, dec("200").Equal(order.Items[0].LineTotal))

	assert.Equal(t, 8, productStock(t, f.db, phone.ID))
	assert.Equal(t, 0, productStock(t, f.db, cable.ID))

	view, err := f.carts.GetCart(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Nil(t, view.Coupon)

	assert.Equal(t, []string{events.OrderCreated}, f.recorder.Types())
	payload, ok := f.recorder.Events[0].Payload.(OrderEvent)
	require.True(t, ok)
	assert.Equal(t, order.ID, payload.OrderID)
	assert.Equal(t, model.OrderPending, payload.Status)
}

func TestPlaceOrderFreezesPrices(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
	_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1)
	require.NoError(t, err)
	order := f.checkout(t)

	require.NoError(t, f.db.Model(&product).Updates(map[string]interface{}{"price": dec("150"), "name": "Phone 2"}).Error)

	stored, err := f.orders.Get(ctx, Actor{UserID: f.user.ID, Role: model.RoleCustomer}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Phone", stored.Items[0].ProductName)
	assert.True(t, dec("100").Equal(stored.Items[0].UnitPrice))
	assert.True(t, dec("100").Equal(stored.Total))
}

func TestPlaceOrderRejections(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		f := setupOrders(t)
		_, err := f.orders.Place(context.Background(), f.user.ID, PlaceOrderInput{})
		var domainErr *Error
		require.ErrorAs(t, err, &domainErr)
		assert.Contains(t, domainErr.Fields, "shipping_address")
		assert.Contains(t, domainErr.Fields, "payment_method_id")
	})

	t.Run("empty cart", func(t *testing.T) {
		f := setupOrders(t)
		_, err := f.orders.Place(context.Background(), f.user.ID, PlaceOrderInput{
			ShippingAddress: "1 Main St", PaymentMethodID: f.catalog.method.ID,
		})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("inactive payment method", func(t *testing.T) {
		f := setupOrders(t)
		product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
		_, err := f.carts.AddItem(context.Background(), f.user.ID, product.ID, 1)
		require.NoError(t, err)
		require.NoError(t, f.db.Model(&f.catalog.method).Update("is_active", false).Error)

		_, err = f.orders.Place(context.Background(), f.user.ID, PlaceOrderInput{
			ShippingAddress: "1 Main St", PaymentMethodID: f.catalog.method.ID,
		})
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, 10, productStock(t, f.db, product.ID))
	})

	t.Run("expired coupon", func(t *testing.T) {
		f := setupOrders(t)
		ctx := context.Background()
		expires := time.Now().Add(time.Hour)
		product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
		createCoupon(t, f.db, "SOON", pricing.Fixed, "5", true, nil, &expires)
		_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1)
		require.NoError(t, err)
		_, err = f.carts.ApplyCoupon(ctx, f.user.ID, "SOON")
		require.NoError(t, err)

		f.orders.now = func() time.Time { return expires.Add(time.Second) }
		_, err = f.orders.Place(ctx, f.user.ID, PlaceOrderInput{
			ShippingAddress: "1 Main St", PaymentMethodID: f.catalog.method.ID,
		})
		assert.Equal(t, KindValidation, KindOf(err))
		assert.ErrorIs(t, err, model.ErrCouponExpired)
	})
}

func TestPlaceOrderInsufficientStockChangesNothing(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	plenty := createProduct(t, f.db, f.catalog.subcategory.ID, "Cable", "5", 10)
	scarce := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 5)
	_, err := f.carts.AddItem(ctx, f.user.ID, plenty.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, f.user.ID, scarce.ID, 3)
	require.NoError(t, err)

	// another shopper bought most of the stock in the meantime
	require.NoError(t, f.db.Model(&scarce).Update("stock", 2).Error)

	_, err = f.orders.Place(ctx, f.user.ID, PlaceOrderInput{
		ShippingAddress: "1 Main St", PaymentMethodID: f.catalog.method.ID,
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "insufficient stock for Phone")

	assert.Equal(t, 10, productStock(t, f.db, plenty.ID))
	assert.Equal(t, 2, productStock(t, f.db, scarce.ID))

	var orders int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)

	view, err := f.carts.GetCart(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.Empty(t, f.recorder.Events)
}

func TestOrderStatusFlow(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
	_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1)
	require.NoError(t, err)
	order := f.checkout(t)

	_, err = f.orders.UpdateStatus(ctx, order.ID, model.OrderCompleted)
	assert.Equal(t, KindValidation, KindOf(err), "pending cannot complete directly")

	_, err = f.orders.UpdateStatus(ctx, order.ID, "shipped")
	assert.Equal(t, KindValidation, KindOf(err))

	updated, err := f.orders.UpdateStatus(ctx, order.ID, model.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, model.OrderProcessing, updated.Status)

	updated, err = f.orders.UpdateStatus(ctx, order.ID, model.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, updated.Status)

	_, err = f.orders.UpdateStatus(ctx, order.ID, model.OrderCancelled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot change order status from completed to cancelled")
	assert.Equal(t, 9, productStock(t, f.db, product.ID))

	_, err = f.orders.UpdateStatus(ctx, 999, model.OrderProcessing)
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.Equal(t, []string{events.OrderCreated, events.OrderStatusChanged, events.OrderStatusChanged}, f.recorder.Types())
	last := f.recorder.Events[2].Payload.(OrderEvent)
	assert.Equal(t, model.OrderProcessing, last.PreviousStatus)
	assert.Equal(t, model.OrderCompleted, last.Status)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
	_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 3)
	require.NoError(t, err)
	order := f.checkout(t)
	require.Equal(t, 7, productStock(t, f.db, product.ID))

	stranger := createUser(t, f.db, "stranger@example.com", model.RoleCustomer)
	_, err = f.orders.Cancel(ctx, stranger.ID, order.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	cancelled, err := f.orders.Cancel(ctx, f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, 10, productStock(t, f.db, product.ID))

	_, err = f.orders.Cancel(ctx, f.user.ID, order.ID)
	assert.Equal(t, KindValidation, KindOf(err), "cancelled is terminal")
	assert.Equal(t, 10, productStock(t, f.db, product.ID))
}

func TestCancelRestoresStockOfDeletedProduct(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 5)
	_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 2)
	require.NoError(t, err)
	order := f.checkout(t)

	require.NoError(t, NewProductService(f.db, nil, zap.NewNop(), 10, "").DeleteProduct(ctx, product.ID))
	_, err = f.orders.Cancel(ctx, f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, productStock(t, f.db, product.ID))
}

func TestOrderVisibility(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	product := createProduct(t, f.db, f.catalog.subcategory.ID, "Phone", "100", 10)
	_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1)
	require.NoError(t, err)
	order := f.checkout(t)

	other := createUser(t, f.db, "other@example.com", model.RoleCustomer)
	_, err = f.carts.AddItem(ctx, other.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = f.orders.Place(ctx, other.ID, PlaceOrderInput{ShippingAddress: "2 Side St", PaymentMethodID: f.catalog.method.ID})
	require.NoError(t, err)

	_, err = f.orders.Get(ctx, Actor{UserID: other.ID, Role: model.RoleCustomer}, order.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	asAdmin, err := f.orders.Get(ctx, Actor{UserID: 999, Role: model.RoleAdmin}, order.ID)
	require.NoError(t, err)
	require.NotNil(t, asAdmin.User)
	assert.Equal(t, f.user.Email, asAdmin.User.Email)

	mine, pagination, err := f.orders.ListForUser(ctx, f.user.ID, Page{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)
	assert.Equal(t, int64(1), pagination.Total)

	_, err = f.orders.UpdateStatus(ctx, order.ID, model.OrderProcessing)
	require.NoError(t, err)

	all, _, err := f.orders.ListAll(ctx, "", Page{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	processing, _, err := f.orders.ListAll(ctx, model.OrderProcessing, Page{})
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, order.ID, processing[0].ID)

	_, _, err = f.orders.ListAll(ctx, "lost", Page{})
	assert.Equal(t, KindValidation, KindOf(err))
}
