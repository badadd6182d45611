package service

import (
	"shop-service/internal/model"
)

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// canModify reports whether a may change a record owned by ownerID
func (a Actor) canModify(ownerID uint) bool {
	return a.IsAdmin() || a.UserID == ownerID
}
