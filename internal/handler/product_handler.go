package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/service"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProductRequest is the body of product create and update
type ProductRequest struct {
	Name          string              `json:"name" validate:"required,max=255"`
	Description   string              `json:"description"`
	Price         *decimal.Decimal    `json:"price" validate:"required"`
	Stock         int                 `json:"stock" validate:"gte=0"`
	Status        model.ProductStatus `json:"status" validate:"omitempty,oneof=active inactive"`
	SubCategoryID uint                `json:"subcategory_id" validate:"required"`
	TagIDs        []uint              `json:"tag_ids"`
	Images        []string            `json:"images" validate:"dive,max=500"`
}

func (r ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:          r.Name,
		Description:   r.Description,
		Price:         *r.Price,
		Stock:         r.Stock,
		Status:        r.Status,
		SubCategoryID: r.SubCategoryID,
		TagIDs:        r.TagIDs,
		Images:        r.Images,
	}
}

type ProductHandler struct {
	products *service.ProductService
}

func NewProductHandler(products *service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts handles the storefront listing. Only admins may list
// inactive products, by passing status.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	filter, err := productFilter(c)
	if err != nil {
		return err
	}
	if !actor(c).IsAdmin() {
		filter.Status = model.ProductActive
	}

	products, pagination, err := h.products.ListProducts(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return paged(c, "Products retrieved", products, pagination)
}

// SearchProducts is the listing with a required search term
func (h *ProductHandler) SearchProducts(c echo.Context) error {
	if strings.TrimSpace(c.QueryParam("q")) == "" {
		return service.FieldError("q", "q is required")
	}
	return h.ListProducts(c)
}

func productFilter(c echo.Context) (service.ProductFilter, error) {
	var f service.ProductFilter
	var err error

	if f.SubCategoryID, err = optionalUint(c, "subcategory_id"); err != nil {
		return f, err
	}
	if f.CategoryID, err = optionalUint(c, "category_id"); err != nil {
		return f, err
	}
	if f.TagID, err = optionalUint(c, "tag_id"); err != nil {
		return f, err
	}
	if f.MinPrice, err = optionalDecimal(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optionalDecimal(c, "max_price"); err != nil {
		return f, err
	}
	if f.Page, err = pageParams(c); err != nil {
		return f, err
	}

	f.Status = model.ProductStatus(c.QueryParam("status"))
	f.Stock = c.QueryParam("stock")
	f.Search = c.QueryParam("q")
	if f.Search == "" {
		f.Search = c.QueryParam("search")
	}
	f.SortBy = c.QueryParam("sort_by")
	f.SortDir = c.QueryParam("sort_dir")
	return f, nil
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.products.GetProduct(c.Request().Context(), id, actor(c).IsAdmin())
	if err != nil {
		return err
	}
	return ok(c, "Product retrieved", product)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)

	var req ProductRequest
	if err := bind(c, &req); err != nil {
		log.Warn("Invalid product request", zap.Error(err))
		return err
	}

	product, err := h.products.CreateProduct(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return created(c, "Product created", product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req ProductRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	product, err := h.products.UpdateProduct(c.Request().Context(), id, req.input())
	if err != nil {
		return err
	}
	return ok(c, "Product updated", product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.products.DeleteProduct(c.Request().Context(), id); err != nil {
		return err
	}
	return ok(c, "Product deleted", nil)
}

// ExportProducts streams the catalog as an xlsx workbook
func (h *ProductHandler) ExportProducts(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.products.ExportProducts(c.Request().Context(), &buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("products-%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	logger.FromContext(c).Info("Products exported", zap.Int("bytes", buf.Len()))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
