package service

import (
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a requested page; zero values fall back to defaults
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

// Pagination describes the page that was returned
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// paginate counts query and loads one page of it into dest.
// scopes (ordering, preloads) only apply to the page query.
func paginate(query *gorm.DB, page Page, dest interface{}, scopes ...func(*gorm.DB) *gorm.DB) (Pagination, error) {
	page = page.normalize()

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Pagination{}, err
	}

	offset := (page.Page - 1) * page.Limit
	if err := query.Scopes(scopes...).Offset(offset).Limit(page.Limit).Find(dest).Error; err != nil {
		return Pagination{}, err
	}

	return Pagination{
		CurrentPage: page.Page,
		Limit:       page.Limit,
		Total:       total,
		TotalPages:  int((total + int64(page.Limit) - 1) / int64(page.Limit)),
	}, nil
}
