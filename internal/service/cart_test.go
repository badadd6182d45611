package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetCartWithoutCart(t *testing.T) {
	svc := NewCartService(setupTestDB(t), zap.NewNop())

	view, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}

func TestAddSameProductTwiceIncrementsQuantity(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCartService(db, zap.NewNop())
	ctx := context.Background()

	user := createUser(t, db, "buyer@example.com", model.RoleCustomer)
	product := createProduct(t, db, c.subcategory.ID, "Phone", "100", 10)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, dec("500").Equal(view.Items[0].LineTotal))
	assert.True(t, dec("500").Equal(view.Subtotal))

	var lines int64
	require.NoError(t, db.Model(&model.CartItem{}).Count(&lines).Error)
	assert.Equal(t, int64(1), lines)
}

func TestAddItemRejections(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCartService(db, zap.NewNop())
	ctx := context.Background()

	user := createUser(t, db, "buyer@example.com", model.RoleCustomer)
	product := createProduct(t, db, c.subcategory.ID, "Phone", "100", 3)
	inactive := createProduct(t, db, c.subcategory.ID, "Prototype", "100", 3)
	require.NoError(t, db.Model(&inactive).Update("status", model.ProductInactive).Error)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 0)
	assert.Equal(t, KindValidation, KindOf(err), "zero quantity")

	_, err = svc.AddItem(ctx, user.ID, 999, 1)
	assert.Equal(t, KindNotFound, KindOf(err), "unknown product")

	_, err = svc.AddItem(ctx, user.ID, inactive.ID, 1)
	assert.Equal(t, KindValidation, KindOf(err), "inactive product")

	_, err = svc.AddItem(ctx, user.ID, product.ID, 4)
	assert.Equal(t, KindValidation, KindOf(err), "more than stock")

	_, err = svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user.ID, product.ID, 2)
	assert.Equal(t, KindValidation, KindOf(err), "cart plus request exceeds stock")

	view, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCartService(db, zap.NewNop())
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", model.RoleCustomer)
	stranger := createUser(t, db, "stranger@example.com", model.RoleCustomer)
	product := createProduct(t, db, c.subcategory.ID, "Phone", "10", 5)

	view, err := svc.AddItem(ctx, owner.ID, product.ID, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	_, err = svc.UpdateItem(ctx, stranger.ID, itemID, 2)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.UpdateItem(ctx, owner.ID, itemID, 6)
	assert.Equal(t, KindValidation, KindOf(err))

	view, err = svc.UpdateItem(ctx, owner.ID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)
	assert.True(t, dec("40").Equal(view.Total))

	_, err = svc.RemoveItem(ctx, stranger.ID, itemID)
	assert.Equal(t, KindNotFound, KindOf(err))

	view, err = svc.RemoveItem(ctx, owner.ID, itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCartTotalsWithCoupon(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		quantity int
		kind     pricing.DiscountType
		value    string
		want     pricing.Totals
	}{
		{"percentage", "100", 2, pricing.Percentage, "10", pricing.Totals{Subtotal: dec("200"), Discount: dec("20"), Total: dec("180")}},
		{"fixed above subtotal", "10", 1, pricing.Fixed, "15", pricing.Totals{Subtotal: dec("10"), Discount: dec("10"), Total: dec("0")}},
		{"fixed", "19.99", 3, pricing.Fixed, "5", pricing.Totals{Subtotal: dec("59.97"), Discount: dec("5"), Total: dec("54.97")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			c := seedCatalog(t, db)
			svc := NewCartService(db, zap.NewNop())
			ctx := context.Background()

			user := createUser(t, db, "buyer@example.com", model.RoleCustomer)
			product := createProduct(t, db, c.subcategory.ID, "Item", tt.price, 10)
			createCoupon(t, db, "SAVE", tt.kind, tt.value, true, nil, nil)

			_, err := svc.AddItem(ctx, user.ID, product.ID, tt.quantity)
			require.NoError(t, err)
			view, err := svc.ApplyCoupon(ctx, user.ID, " save ")
			require.NoError(t, err)

			require.NotNil(t, view.Coupon)
			assert.Equal(t, "SAVE", view.Coupon.Code)
			assert.Truef(t, tt.want.Subtotal.Equal(view.Subtotal), "subtotal %s", view.Subtotal)
			assert.Truef(t, tt.want.Discount.Equal(view.Discount), "discount %s", view.Discount)
			assert.Truef(t, tt.want.Total.Equal(view.Total), "total %s", view.Total)
		})
	}
}

func TestApplyCouponRejectionsLeaveCartUnchanged(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCartService(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-48 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	user := createUser(t, db, "buyer@example.com", model.RoleCustomer)
	product := createProduct(t, db, c.subcategory.ID, "Item", "50", 10)
	valid := createCoupon(t, db, "VALID", pricing.Fixed, "5", true, nil, nil)
	createCoupon(t, db, "OFF", pricing.Fixed, "5", false, nil, nil)
	createCoupon(t, db, "LATER", pricing.Fixed, "5", true, &tomorrow, nil)
	createCoupon(t, db, "GONE", pricing.Fixed, "5", true, &past, &yesterday)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, user.ID, "VALID")
	require.NoError(t, err)

	tests := []struct {
		code string
		kind Kind
		err  error
	}{
		{"NOPE", KindNotFound, nil},
		{"OFF", KindValidation, model.ErrCouponInactive},
		{"LATER", KindValidation, model.ErrCouponNotStarted},
		{"GONE", KindValidation, model.ErrCouponExpired},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := svc.ApplyCoupon(ctx, user.ID, tt.code)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				assert.Equal(t, "Coupon cannot be applied: "+tt.err.Error(), err.Error())

				var domainErr *Error
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, tt.err.Error(), domainErr.Fields["code"])
			}

			var cart model.Cart
			require.NoError(t, db.Where("user_id = ?", user.ID).First(&cart).Error)
			require.NotNil(t, cart.CouponID)
			assert.Equal(t, valid.ID, *cart.CouponID)
		})
	}
}

func TestCartFlagsCouponThatStoppedBeingValid(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCartService(db, zap.NewNop())
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	user := createUser(t, db, "buyer@example.com", model.RoleCustomer)
	product := createProduct(t, db, c.subcategory.ID, "Item", "50", 10)
	createCoupon(t, db, "SOON", pricing.Percentage, "50", true, nil, &expires)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	view, err := svc.ApplyCoupon(ctx, user.ID, "SOON")
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(view.Total))

	svc.now = func() time.Time { return expires.Add(time.Minute) }
	view, err = svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ErrCouponExpired.Error(), view.CouponError)
	assert.True(t, view.Discount.IsZero())
	assert.True(t, dec("50").Equal(view.Total))
}

func TestRemoveCouponAndClear(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCartService(db, zap.NewNop())
	ctx := context.Background()

	user := createUser(t, db, "buyer@example.com", model.RoleCustomer)
	product := createProduct(t, db, c.subcategory.ID, "Item", "50", 10)
	createCoupon(t, db, "TEN", pricing.Fixed, "10", true, nil, nil)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, user.ID, "TEN")
	require.NoError(t, err)

	view, err := svc.RemoveCoupon(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Coupon)
	assert.True(t, dec("50").Equal(view.Total))

	_, err = svc.ApplyCoupon(ctx, user.ID, "TEN")
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, user.ID))

	view, err = svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Nil(t, view.Coupon)
}
