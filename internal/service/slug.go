package service

import (
	"fmt"
	"strings"
	"unicode"

	"gorm.io/gorm"
)

// slugify lower-cases name and joins its letters and digits with single dashes
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug returns a slug for name not yet used in table, ignoring the row excludeID
func uniqueSlug(tx *gorm.DB, table, name string, excludeID uint) (string, error) {
	base := slugify(name)
	if base == "" {
		base = "item"
	}

	candidate := base
	for i := 2; ; i++ {
		var count int64
		q := tx.Table(table).Where("slug = ?", candidate)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
