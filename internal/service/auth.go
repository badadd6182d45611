package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/pkg/jwtutil"
	"shop-service/prometheus"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterInput is a new customer account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by register and login
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// AuthService registers users and issues tokens
type AuthService struct {
	db  *gorm.DB
	jwt *jwtutil.JWTUtil
	log *zap.Logger
}

func NewAuthService(db *gorm.DB, jwt *jwtutil.JWTUtil, log *zap.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, log: log}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "name is required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "email must be a valid email address"
	}
	if len(in.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		prometheus.RecordAuthAttempt("register", false)
		return nil, Validation("The given data was invalid", fields)
	}

	user, err := s.createUser(ctx, in.Name, in.Email, in.Password, model.RoleCustomer)
	if err != nil {
		prometheus.RecordAuthAttempt("register", false)
		return nil, err
	}

	prometheus.RecordAuthAttempt("register", true)
	s.log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		prometheus.RecordAuthAttempt("login", false)
		return nil, Unauthorized("Invalid email or password")
	}

	prometheus.RecordAuthAttempt("login", true)
	return s.issue(&user)
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, FieldError("name", "name is required")
	}
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user.Name = name
	return user, nil
}

// EnsureAdmin creates the admin account if no user has that email yet
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	user, err := s.createUser(ctx, "Administrator", email, password, model.RoleAdmin)
	if err != nil {
		return err
	}
	s.log.Info("Admin user seeded", zap.Uint("user_id", user.ID), zap.String("email", email))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password, role string) (*model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{Name: name, Email: email, Password: string(hashed), Role: role}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return Conflict("Email is already registered")
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.jwt.GenerateToken(user.Email, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
