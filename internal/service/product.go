package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/pkg/cache"
	"shop-service/prometheus"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stock level filters
const (
	StockIn  = "in"
	StockOut = "out"
	StockLow = "low"
)

// likeEscaper makes LIKE wildcards in a search term match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

var productSortColumns = map[string]string{
	"name":       "products.name",
	"price":      "products.price",
	"stock":      "products.stock",
	"created_at": "products.created_at",
}

// ProductFilter combines the optional listing filters; nil and empty values are ignored
type ProductFilter struct {
	SubCategoryID *uint
	CategoryID    *uint
	TagID         *uint
	Status        model.ProductStatus
	Stock         string
	Search        string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	SortBy        string
	SortDir       string
	Page          Page
}

// ProductInput is the writable part of a product
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Stock         int
	Status        model.ProductStatus
	SubCategoryID uint
	TagIDs        []uint
	Images        []string
}

// RatingSummary aggregates the reviews of one product
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// ProductDetail is a product with its review summary
type ProductDetail struct {
	model.Product
	Rating RatingSummary `json:"rating"`
}

// ProductService manages products and their storefront listing
type ProductService struct {
	db                *gorm.DB
	cache             *cache.Cache
	log               *zap.Logger
	lowStockThreshold int
	imageBaseURL      string
}

// NewProductService builds the service. cache may be nil.
func NewProductService(db *gorm.DB, c *cache.Cache, log *zap.Logger, lowStockThreshold int, imageBaseURL string) *ProductService {
	return &ProductService{
		db:                db,
		cache:             c,
		log:               log,
		lowStockThreshold: lowStockThreshold,
		imageBaseURL:      strings.TrimSuffix(imageBaseURL, "/"),
	}
}

const productKeyPrefix = "product:"

func productKey(id uint) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, id)
}

// ListProducts applies every set filter and returns one page
func (s *ProductService) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, Pagination, error) {
	defer prometheus.TrackDBOperation("list_products")(time.Now())

	q := s.db.WithContext(ctx).Model(&model.Product{})

	if f.SubCategoryID != nil {
		q = q.Where("products.subcategory_id = ?", *f.SubCategoryID)
	}
	if f.CategoryID != nil {
		q = q.Where("products.subcategory_id IN (?)",
			s.db.Model(&model.SubCategory{}).Select("id").Where("category_id = ?", *f.CategoryID))
	}
	if f.TagID != nil {
		q = q.Where("products.id IN (?)",
			s.db.Table("product_tags").Select("product_id").Where("tag_id = ?", *f.TagID))
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, Pagination{}, FieldError("status", "status must be active or inactive")
		}
		q = q.Where("products.status = ?", f.Status)
	}

	switch f.Stock {
	case "":
	case StockIn:
		q = q.Where("products.stock > 0")
	case StockOut:
		q = q.Where("products.stock = 0")
	case StockLow:
		q = q.Where("products.stock < ?", s.lowStockThreshold)
	default:
		return nil, Pagination{}, FieldError("stock", "stock must be one of in, out, low")
	}

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where(`(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.description) LIKE ? ESCAPE '\')`, like, like)
	}
	if f.MinPrice != nil {
		q = q.Where("products.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("products.price <= ?", *f.MaxPrice)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, Pagination{}, FieldError("min_price", "min_price must not exceed max_price")
	}

	order, err := productOrder(f.SortBy, f.SortDir)
	if err != nil {
		return nil, Pagination{}, err
	}
	var products []model.Product
	pagination, err := paginate(q, f.Page, &products, func(db *gorm.DB) *gorm.DB {
		return db.Order(order).Order("products.id asc").
			Preload("SubCategory").
			Preload("Tags").
			Preload("Images", imagesInOrder)
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list products: %w", err)
	}
	return products, pagination, nil
}

func productOrder(sortBy, sortDir string) (string, error) {
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := productSortColumns[sortBy]
	if !ok {
		return "", FieldError("sort_by", "sort_by must be one of name, price, stock, created_at")
	}

	switch strings.ToLower(sortDir) {
	case "":
		if sortBy == "created_at" {
			return column + " desc", nil
		}
		return column + " asc", nil
	case "asc", "desc":
		return column + " " + strings.ToLower(sortDir), nil
	default:
		return "", FieldError("sort_dir", "sort_dir must be asc or desc")
	}
}

// GetProduct returns a product with its rating summary. Inactive products
// are only visible when includeInactive is set.
func (s *ProductService) GetProduct(ctx context.Context, id uint, includeInactive bool) (*ProductDetail, error) {
	detail, err := cache.Remember(ctx, s.cache, productKey(id), func(ctx context.Context) (*ProductDetail, error) {
		return s.loadProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if detail.Status != model.ProductActive && !includeInactive {
		return nil, NotFound("product")
	}
	return detail, nil
}

func (s *ProductService) loadProduct(ctx context.Context, id uint) (*ProductDetail, error) {
	defer prometheus.TrackDBOperation("get_product")(time.Now())

	db := s.db.WithContext(ctx)
	var product model.Product
	err := db.
		Preload("SubCategory.Category").
		Preload("Tags").
		Preload("Images", imagesInOrder).
		First(&product, id).Error
	if err != nil {
		return nil, notFoundOr(err, "product")
	}

	rating, err := ratingSummary(db, id)
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: product, Rating: rating}, nil
}

func ratingSummary(db *gorm.DB, productID uint) (RatingSummary, error) {
	var row struct {
		Average float64
		Count   int64
	}
	err := db.Model(&model.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, fmt.Errorf("rating summary: %w", err)
	}
	return RatingSummary{Average: math.Round(row.Average*10) / 10, Count: row.Count}, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	defer prometheus.TrackDBOperation("create_product")(time.Now())

	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := s.validateProduct(tx, &in)
		if err != nil {
			return err
		}
		slug, err := uniqueSlug(tx, "products", in.Name, 0)
		if err != nil {
			return err
		}

		product = model.Product{
			Name:          in.Name,
			Slug:          slug,
			Description:   in.Description,
			Price:         in.Price,
			Stock:         in.Stock,
			Status:        in.Status,
			SubCategoryID: in.SubCategoryID,
			Tags:          tags,
			Images:        s.images(in.Images),
		}
		return tx.Create(&product).Error
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCatalogOperation("product", "create")
	prometheus.UpdateProductInventory(product.ID, product.Stock)
	s.log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("price", product.Price.String()),
		zap.Int("stock", product.Stock))
	return &product, nil
}

// UpdateProduct replaces every writable field, tags and images included
func (s *ProductService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*model.Product, error) {
	defer prometheus.TrackDBOperation("update_product")(time.Now())

	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			return notFoundOr(err, "product")
		}
		tags, err := s.validateProduct(tx, &in)
		if err != nil {
			return err
		}
		if in.Name != product.Name {
			if product.Slug, err = uniqueSlug(tx, "products", in.Name, id); err != nil {
				return err
			}
		}

		err = tx.Model(&product).Updates(map[string]interface{}{
			"name":           in.Name,
			"slug":           product.Slug,
			"description":    in.Description,
			"price":          in.Price,
			"stock":          in.Stock,
			"status":         in.Status,
			"subcategory_id": in.SubCategoryID,
		}).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&product).Association("Tags").Replace(tags); err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&model.ProductImage{}).Error; err != nil {
			return err
		}
		if images := s.images(in.Images); len(images) > 0 {
			for i := range images {
				images[i].ProductID = id
			}
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}

		return tx.Preload("Tags").Preload("Images", imagesInOrder).First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	prometheus.RecordCatalogOperation("product", "update")
	prometheus.UpdateProductInventory(product.ID, product.Stock)
	return &product, nil
}

// DeleteProduct soft-deletes a product and drops it from carts and wishlists.
// Order history keeps its own snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.First(&product, id).Error; err != nil {
			return notFoundOr(err, "product")
		}
		if err := tx.Where("product_id = ?", id).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&model.WishlistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	prometheus.RecordCatalogOperation("product", "delete")
	prometheus.RemoveProductInventory(id)
	s.log.Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

// validateProduct normalizes in and loads its tags
func (s *ProductService) validateProduct(tx *gorm.DB, in *ProductInput) ([]model.Tag, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Status == "" {
		in.Status = model.ProductActive
	}

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "name is required"
	}
	if in.Price.IsNegative() {
		fields["price"] = "price must not be negative"
	} else if !in.Price.Equal(in.Price.Round(2)) {
		fields["price"] = "price must have at most two decimal places"
	}
	if in.Stock < 0 {
		fields["stock"] = "stock must not be negative"
	}
	if !in.Status.Valid() {
		fields["status"] = "status must be active or inactive"
	}
	if in.SubCategoryID == 0 {
		fields["subcategory_id"] = "subcategory_id is required"
	} else {
		var count int64
		if err := tx.Model(&model.SubCategory{}).Where("id = ?", in.SubCategoryID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			fields["subcategory_id"] = "subcategory does not exist"
		}
	}

	var tags []model.Tag
	if ids := uniqueIDs(in.TagIDs); len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
			return nil, err
		}
		if len(tags) != len(ids) {
			fields["tag_ids"] = "one or more tags do not exist"
		}
	}

	if len(fields) > 0 {
		return nil, Validation("The given data was invalid", fields)
	}
	return tags, nil
}

func (s *ProductService) images(urls []string) []model.ProductImage {
	var images []model.ProductImage
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if s.imageBaseURL != "" && !strings.Contains(u, "://") {
			u = s.imageBaseURL + "/" + strings.TrimPrefix(u, "/")
		}
		images = append(images, model.ProductImage{URL: u, Position: len(images)})
	}
	return images
}

func (s *ProductService) invalidate(ctx context.Context, ids ...uint) {
	invalidateProducts(ctx, s.cache, s.log, ids...)
}

func invalidateProducts(ctx context.Context, c *cache.Cache, log *zap.Logger, ids ...uint) {
	if c == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := c.Delete(ctx, keys...); err != nil {
		log.Warn("Failed to invalidate product cache", zap.Uints("product_ids", ids), zap.Error(err))
	}
}

func invalidateAllProducts(ctx context.Context, c *cache.Cache, log *zap.Logger) {
	if c == nil {
		return
	}
	if err := c.DeletePattern(ctx, productKeyPrefix+"*"); err != nil {
		log.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

// ExportProducts writes every product, inactive ones included, as an xlsx workbook
func (s *ProductService) ExportProducts(ctx context.Context, w io.Writer) error {
	defer prometheus.TrackDBOperation("export_products")(time.Now())

	var products []model.Product
	err := s.db.WithContext(ctx).
		Preload("SubCategory.Category").
		Preload("Tags").
		Order("products.id asc").
		Find(&products).Error
	if err != nil {
		return fmt.Errorf("export products: %w", err)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range []string{"ID", "Name", "Slug", "Category", "Subcategory", "Price", "Stock", "Status", "Tags", "CreatedAt", "UpdatedAt"} {
		header.AddCell().SetString(h)
	}

	for _, p := range products {
		var category, subcategory string
		if p.SubCategory != nil {
			subcategory = p.SubCategory.Name
			if p.SubCategory.Category != nil {
				category = p.SubCategory.Category.Name
			}
		}
		tagNames := make([]string, len(p.Tags))
		for i, t := range p.Tags {
			tagNames[i] = t.Name
		}

		row := sheet.AddRow()
		row.AddCell().SetInt(int(p.ID))
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Slug)
		row.AddCell().SetString(category)
		row.AddCell().SetString(subcategory)
		row.AddCell().SetFloat(p.Price.InexactFloat64())
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetString(string(p.Status))
		row.AddCell().SetString(strings.Join(tagNames, ","))
		row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	return file.Write(w)
}

func imagesInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
