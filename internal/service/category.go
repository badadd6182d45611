package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/pkg/cache"
	"shop-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryInput is the writable part of a category
type CategoryInput struct {
	Name        string
	Description string
	ParentID    *uint
}

// SubCategoryInput is the writable part of a subcategory
type SubCategoryInput struct {
	Name        string
	Description string
	CategoryID  uint
}

// CategoryService manages the two catalog levels and product tags.
// Cached product details embed their category and tags, so renames and
// tag deletes drop every cached product.
type CategoryService struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *zap.Logger
}

func NewCategoryService(db *gorm.DB, c *cache.Cache, log *zap.Logger) *CategoryService {
	return &CategoryService{db: db, cache: c, log: log}
}

// ListCategories returns the root categories with their children and subcategories
func (s *CategoryService) ListCategories(ctx context.Context) ([]model.Category, error) {
	defer prometheus.TrackDBOperation("list_categories")(time.Now())

	var categories []model.Category
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Preload("SubCategories", orderByName).
		Preload("Children", orderByName).
		Preload("Children.SubCategories", orderByName).
		Order("name asc").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Preload("Children", orderByName).
		Preload("SubCategories", orderByName).
		First(&category, id).Error
	if err != nil {
		return nil, notFoundOr(err, "category")
	}
	return &category, nil
}

func (s *CategoryService) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, FieldError("name", "name is required")
	}

	var category model.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkParent(tx, 0, in.ParentID); err != nil {
			return err
		}
		slug, err := uniqueSlug(tx, "categories", in.Name, 0)
		if err != nil {
			return err
		}
		category = model.Category{
			Name:        in.Name,
			Slug:        slug,
			Description: in.Description,
			ParentID:    in.ParentID,
		}
		return tx.Create(&category).Error
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCatalogOperation("category", "create")
	s.log.Info("Category created", zap.Uint("category_id", category.ID), zap.String("slug", category.Slug))
	return &category, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, FieldError("name", "name is required")
	}

	var category model.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, id).Error; err != nil {
			return notFoundOr(err, "category")
		}
		if err := checkParent(tx, id, in.ParentID); err != nil {
			return err
		}
		if in.Name != category.Name {
			slug, err := uniqueSlug(tx, "categories", in.Name, id)
			if err != nil {
				return err
			}
			category.Slug = slug
		}
		category.Name = in.Name
		category.Description = in.Description
		category.ParentID = in.ParentID
		return tx.Model(&category).Updates(map[string]interface{}{
			"name":        category.Name,
			"slug":        category.Slug,
			"description": category.Description,
			"parent_id":   category.ParentID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateAllProducts(ctx, s.cache, s.log)
	prometheus.RecordCatalogOperation("category", "update")
	return &category, nil
}

// DeleteCategory removes an empty category. Categories that still hold
// child categories, subcategories or products are left untouched.
func (s *CategoryService) DeleteCategory(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category model.Category
		if err := tx.First(&category, id).Error; err != nil {
			return notFoundOr(err, "category")
		}

		var children, subcategories, products int64
		if err := tx.Model(&model.Category{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.SubCategory{}).Where("category_id = ?", id).Count(&subcategories).Error; err != nil {
			return err
		}
		err := tx.Model(&model.Product{}).
			Where("subcategory_id IN (?)", tx.Model(&model.SubCategory{}).Select("id").Where("category_id = ?", id)).
			Count(&products).Error
		if err != nil {
			return err
		}

		if children > 0 || subcategories > 0 || products > 0 {
			s.log.Warn("Refusing to delete non-empty category",
				zap.Uint("category_id", id),
				zap.Int64("children", children),
				zap.Int64("subcategories", subcategories),
				zap.Int64("products", products))
			return Validation("Cannot delete category that has subcategories or products", map[string]string{
				"category": fmt.Sprintf("has %d child categories, %d subcategories and %d products", children, subcategories, products),
			})
		}

		return tx.Delete(&category).Error
	})
	if err != nil {
		return err
	}

	prometheus.RecordCatalogOperation("category", "delete")
	return nil
}

// checkParent rejects a missing parent and any parent that would create a cycle
func checkParent(tx *gorm.DB, id uint, parentID *uint) error {
	if parentID == nil {
		return nil
	}
	if *parentID == id {
		return FieldError("parent_id", "a category cannot be its own parent")
	}

	var parent model.Category
	if err := tx.Select("id", "parent_id").First(&parent, *parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FieldError("parent_id", "parent category does not exist")
		}
		return err
	}
	if id == 0 {
		return nil
	}

	for depth := 0; parent.ParentID != nil && depth < 64; depth++ {
		if *parent.ParentID == id {
			return FieldError("parent_id", "a category cannot be moved below its own descendant")
		}
		var next model.Category
		if err := tx.Select("id", "parent_id").First(&next, *parent.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		parent = next
	}
	return nil
}

func (s *CategoryService) ListSubCategories(ctx context.Context, categoryID *uint) ([]model.SubCategory, error) {
	q := s.db.WithContext(ctx).Preload("Category").Order("name asc")
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}

	var subcategories []model.SubCategory
	if err := q.Find(&subcategories).Error; err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	return subcategories, nil
}

func (s *CategoryService) GetSubCategory(ctx context.Context, id uint) (*model.SubCategory, error) {
	var sub model.SubCategory
	if err := s.db.WithContext(ctx).Preload("Category").First(&sub, id).Error; err != nil {
		return nil, notFoundOr(err, "subcategory")
	}
	return &sub, nil
}

func (s *CategoryService) CreateSubCategory(ctx context.Context, in SubCategoryInput) (*model.SubCategory, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, FieldError("name", "name is required")
	}

	var sub model.SubCategory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCategory(tx, in.CategoryID); err != nil {
			return err
		}
		slug, err := uniqueSlug(tx, "subcategories", in.Name, 0)
		if err != nil {
			return err
		}
		sub = model.SubCategory{
			Name:        in.Name,
			Slug:        slug,
			Description: in.Description,
			CategoryID:  in.CategoryID,
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCatalogOperation("subcategory", "create")
	return &sub, nil
}

func (s *CategoryService) UpdateSubCategory(ctx context.Context, id uint, in SubCategoryInput) (*model.SubCategory, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, FieldError("name", "name is required")
	}

	var sub model.SubCategory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, id).Error; err != nil {
			return notFoundOr(err, "subcategory")
		}
		if err := requireCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if in.Name != sub.Name {
			slug, err := uniqueSlug(tx, "subcategories", in.Name, id)
			if err != nil {
				return err
			}
			sub.Slug = slug
		}
		sub.Name = in.Name
		sub.Description = in.Description
		sub.CategoryID = in.CategoryID
		return tx.Model(&sub).Updates(map[string]interface{}{
			"name":        sub.Name,
			"slug":        sub.Slug,
			"description": sub.Description,
			"category_id": sub.CategoryID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateAllProducts(ctx, s.cache, s.log)
	prometheus.RecordCatalogOperation("subcategory", "update")
	return &sub, nil
}

// DeleteSubCategory removes a subcategory that no product references
func (s *CategoryService) DeleteSubCategory(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.SubCategory
		if err := tx.First(&sub, id).Error; err != nil {
			return notFoundOr(err, "subcategory")
		}

		var products int64
		if err := tx.Model(&model.Product{}).Where("subcategory_id = ?", id).Count(&products).Error; err != nil {
			return err
		}
		if products > 0 {
			return Validation("Cannot delete subcategory that is being used by products", map[string]string{
				"subcategory": fmt.Sprintf("has %d products", products),
			})
		}
		return tx.Delete(&sub).Error
	})
	if err != nil {
		return err
	}

	prometheus.RecordCatalogOperation("subcategory", "delete")
	return nil
}

func requireCategory(tx *gorm.DB, id uint) error {
	if id == 0 {
		return FieldError("category_id", "category_id is required")
	}
	var count int64
	if err := tx.Model(&model.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return FieldError("category_id", "category does not exist")
	}
	return nil
}

func (s *CategoryService) ListTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if err := s.db.WithContext(ctx).Order("name asc").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *CategoryService) CreateTag(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, FieldError("name", "name is required")
	}

	var tag model.Tag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Tag{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return Conflict("Tag with this name already exists")
		}
		slug, err := uniqueSlug(tx, "tags", name, 0)
		if err != nil {
			return err
		}
		tag = model.Tag{Name: name, Slug: slug}
		return tx.Create(&tag).Error
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordCatalogOperation("tag", "create")
	return &tag, nil
}

// DeleteTag removes a tag and detaches it from every product
func (s *CategoryService) DeleteTag(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.Tag
		if err := tx.First(&tag, id).Error; err != nil {
			return notFoundOr(err, "tag")
		}
		if err := tx.Exec("DELETE FROM product_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		return err
	}

	invalidateAllProducts(ctx, s.cache, s.log)
	prometheus.RecordCatalogOperation("tag", "delete")
	return nil
}

func orderByName(db *gorm.DB) *gorm.DB {
	return db.Order("name asc")
}
