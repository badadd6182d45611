package service

import (
	"context"
	"testing"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/pricing"
	"shop-service/pkg/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// setupTestCache connects to a local Redis under a throwaway prefix
func setupTestCache(t *testing.T) *cache.Cache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	c := cache.New(client, "test:"+uuid.NewString()+":", time.Minute)
	t.Cleanup(func() {
		_ = c.DeletePattern(context.Background(), "*")
		_ = c.Close()
	})
	return c
}

type catalog struct {
	category    model.Category
	subcategory model.SubCategory
	method      model.PaymentMethod
}

func seedCatalog(t *testing.T, db *gorm.DB) catalog {
	t.Helper()

	c := catalog{
		category: model.Category{Name: "Electronics", Slug: "electronics"},
		method:   model.PaymentMethod{Name: "Cash on delivery", Code: "cod", IsActive: true},
	}
	require.NoError(t, db.Create(&c.category).Error)
	c.subcategory = model.SubCategory{Name: "Phones", Slug: "phones", CategoryID: c.category.ID}
	require.NoError(t, db.Create(&c.subcategory).Error)
	require.NoError(t, db.Create(&c.method).Error)
	return c
}

func createUser(t *testing.T, db *gorm.DB, email, role string) model.User {
	t.Helper()
	user := model.User{Name: email, Email: email, Password: "x", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createProduct(t *testing.T, db *gorm.DB, subcategoryID uint, name, price string, stock int) model.Product {
	t.Helper()
	product := model.Product{
		Name:          name,
		Slug:          slugify(name),
		Price:         decimal.RequireFromString(price),
		Stock:         stock,
		Status:        model.ProductActive,
		SubCategoryID: subcategoryID,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func createCoupon(t *testing.T, db *gorm.DB, code string, kind pricing.DiscountType, value string, active bool, startsAt, expiresAt *time.Time) model.Coupon {
	t.Helper()
	coupon := model.Coupon{
		Code:      code,
		Type:      kind,
		Discount:  decimal.RequireFromString(value),
		IsActive:  active,
		StartsAt:  startsAt,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func productStock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.Unscoped().Select("stock").First(&p, id).Error)
	return p.Stock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}
