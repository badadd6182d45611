package service

import (
	"context"
	"testing"

	"shop-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateCategoryGeneratesUniqueSlug(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCategoryService(db, nil, zap.NewNop())
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, CategoryInput{Name: "Home & Garden"})
	require.NoError(t, err)
	second, err := svc.CreateCategory(ctx, CategoryInput{Name: "Home  Garden!"})
	require.NoError(t, err)

	assert.Equal(t, "home-garden", first.Slug)
	assert.Equal(t, "home-garden-2", second.Slug)
}

func TestCreateCategoryRequiresName(t *testing.T) {
	svc := NewCategoryService(setupTestDB(t), nil, zap.NewNop())

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "   "})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCategoryParentRules(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCategoryService(db, nil, zap.NewNop())
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, CategoryInput{Name: "Clothing"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(ctx, CategoryInput{Name: "Men", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Orphan", ParentID: ptr(uint(999))})
	assert.Equal(t, KindValidation, KindOf(err), "missing parent")

	_, err = svc.UpdateCategory(ctx, root.ID, CategoryInput{Name: "Clothing", ParentID: &child.ID})
	assert.Equal(t, KindValidation, KindOf(err), "descendant as parent")

	_, err = svc.UpdateCategory(ctx, root.ID, CategoryInput{Name: "Clothing", ParentID: &root.ID})
	assert.Equal(t, KindValidation, KindOf(err), "self as parent")

	moved, err := svc.UpdateCategory(ctx, child.ID, CategoryInput{Name: "Men"})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)

	roots, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestDeleteCategoryWithSubcategoriesIsRejected(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCategoryService(db, nil, zap.NewNop())

	err := svc.DeleteCategory(context.Background(), c.category.ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "Cannot delete category that has subcategories or products")

	var count int64
	require.NoError(t, db.Model(&model.Category{}).Where("id = ?", c.category.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteEmptyCategory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCategoryService(db, nil, zap.NewNop())
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, CategoryInput{Name: "Toys"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCategory(ctx, category.ID))

	_, err = svc.GetCategory(ctx, category.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSubCategoryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCategoryService(db, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateSubCategory(ctx, SubCategoryInput{Name: "Tablets", CategoryID: 999})
	assert.Equal(t, KindValidation, KindOf(err))

	sub, err := svc.CreateSubCategory(ctx, SubCategoryInput{Name: "Tablets", CategoryID: c.category.ID})
	require.NoError(t, err)
	assert.Equal(t, "tablets", sub.Slug)

	list, err := svc.ListSubCategories(ctx, &c.category.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	createProduct(t, db, c.subcategory.ID, "Phone X", "500", 3)
	err = svc.DeleteSubCategory(ctx, c.subcategory.ID)
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, svc.DeleteSubCategory(ctx, sub.ID))
	_, err = svc.GetSubCategory(ctx, sub.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestTags(t *testing.T) {
	db := setupTestDB(t)
	c := seedCatalog(t, db)
	svc := NewCategoryService(db, nil, zap.NewNop())
	ctx := context.Background()

	tag, err := svc.CreateTag(ctx, "Sale")
	require.NoError(t, err)
	assert.Equal(t, "sale", tag.Slug)

	_, err = svc.CreateTag(ctx, "sale")
	assert.Equal(t, KindConflict, KindOf(err))

	product := createProduct(t, db, c.subcategory.ID, "Phone X", "500", 3)
	require.NoError(t, db.Model(&product).Association("Tags").Append(tag))

	require.NoError(t, svc.DeleteTag(ctx, tag.ID))
	assert.Zero(t, db.Model(&product).Association("Tags").Count())

	tags, err := svc.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestCatalogChangesDropCachedProducts(t *testing.T) {
	db := setupTestDB(t)
	rc := setupTestCache(t)
	c := seedCatalog(t, db)
	categories := NewCategoryService(db, rc, zap.NewNop())
	products := NewProductService(db, rc, zap.NewNop(), 10, "")
	ctx := context.Background()

	tag, err := categories.CreateTag(ctx, "Sale")
	require.NoError(t, err)
	phone := createProduct(t, db, c.subcategory.ID, "Phone X", "500", 3)
	require.NoError(t, db.Model(&phone).Association("Tags").Append(tag))

	detail, err := products.GetProduct(ctx, phone.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Phones", detail.SubCategory.Name)
	require.Len(t, detail.Tags, 1)

	_, err = categories.UpdateSubCategory(ctx, c.subcategory.ID, SubCategoryInput{Name: "Smartphones", CategoryID: c.category.ID})
	require.NoError(t, err)
	detail, err = products.GetProduct(ctx, phone.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Smartphones", detail.SubCategory.Name)

	_, err = categories.UpdateCategory(ctx, c.category.ID, CategoryInput{Name: "Gadgets"})
	require.NoError(t, err)
	detail, err = products.GetProduct(ctx, phone.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Gadgets", detail.SubCategory.Category.Name)

	require.NoError(t, categories.DeleteTag(ctx, tag.ID))
	detail, err = products.GetProduct(ctx, phone.ID, false)
	require.NoError(t, err)
	assert.Empty(t, detail.Tags)
}
