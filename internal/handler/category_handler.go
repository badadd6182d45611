package handler

import (
	"shop-service/internal/service"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

type subCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	CategoryID  uint   `json:"category_id" validate:"required"`
}

type tagRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// CategoryHandler serves categories, subcategories and tags
type CategoryHandler struct {
	catalog *service.CategoryService
}

func NewCategoryHandler(catalog *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{catalog: catalog}
}

func (h *CategoryHandler) ListCategories(c echo.Context) error {
	categories, err := h.catalog.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "Categories retrieved", categories)
}

func (h *CategoryHandler) GetCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	category, err := h.catalog.GetCategory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, "Category retrieved", category)
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.CreateCategory(c.Request().Context(), service.CategoryInput(req))
	if err != nil {
		return err
	}
	logger.FromContext(c).Info("Category created", zap.Uint("category_id", category.ID))
	return created(c, "Category created", category)
}

func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.Request().Context(), id, service.CategoryInput(req))
	if err != nil {
		return err
	}
	return ok(c, "Category updated", category)
}

func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteCategory(c.Request().Context(), id); err != nil {
		return err
	}
	logger.FromContext(c).Info("Category deleted", zap.Uint("category_id", id))
	return ok(c, "Category deleted", nil)
}

func (h *CategoryHandler) ListSubCategories(c echo.Context) error {
	categoryID, err := optionalUint(c, "category_id")
	if err != nil {
		return err
	}
	subcategories, err := h.catalog.ListSubCategories(c.Request().Context(), categoryID)
	if err != nil {
		return err
	}
	return ok(c, "Subcategories retrieved", subcategories)
}

func (h *CategoryHandler) GetSubCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	sub, err := h.catalog.GetSubCategory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, "Subcategory retrieved", sub)
}

func (h *CategoryHandler) CreateSubCategory(c echo.Context) error {
	var req subCategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sub, err := h.catalog.CreateSubCategory(c.Request().Context(), service.SubCategoryInput(req))
	if err != nil {
		return err
	}
	return created(c, "Subcategory created", sub)
}

func (h *CategoryHandler) UpdateSubCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req subCategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sub, err := h.catalog.UpdateSubCategory(c.Request().Context(), id, service.SubCategoryInput(req))
	if err != nil {
		return err
	}
	return ok(c, "Subcategory updated", sub)
}

func (h *CategoryHandler) DeleteSubCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteSubCategory(c.Request().Context(), id); err != nil {
		return err
	}
	return ok(c, "Subcategory deleted", nil)
}

func (h *CategoryHandler) ListTags(c echo.Context) error {
	tags, err := h.catalog.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "Tags retrieved", tags)
}

func (h *CategoryHandler) CreateTag(c echo.Context) error {
	var req tagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tag, err := h.catalog.CreateTag(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return created(c, "Tag created", tag)
}

func (h *CategoryHandler) DeleteTag(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteTag(c.Request().Context(), id); err != nil {
		return err
	}
	return ok(c, "Tag deleted", nil)
}
