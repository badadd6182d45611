package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"shop-service/internal/model"
	"shop-service/pkg/events"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContactInput is a contact form submission
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactNotification asks the mail worker to forward a message to the shop
type ContactNotification struct {
	ContactID uint   `json:"contact_id"`
	Recipient string `json:"recipient"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// ContactService stores contact messages and queues them for the admin mailbox
type ContactService struct {
	db        *gorm.DB
	publisher events.Publisher
	recipient string
	log       *zap.Logger
	now       func() time.Time
}

func NewContactService(db *gorm.DB, publisher events.Publisher, recipient string, log *zap.Logger) *ContactService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ContactService{db: db, publisher: publisher, recipient: recipient, log: log, now: time.Now}
}

// Submit persists the message. A failed notification is logged and does
// not fail the submission.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*model.ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "name is required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "email must be a valid email address"
	}
	if in.Message == "" {
		fields["message"] = "message is required"
	}
	if len(fields) > 0 {
		return nil, Validation("The given data was invalid", fields)
	}

	msg := model.ContactMessage{Name: in.Name, Email: in.Email, Subject: in.Subject, Message: in.Message}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("save contact message: %w", err)
	}

	if s.recipient == "" {
		s.log.Warn("No contact recipient configured, skipping notification", zap.Uint("contact_id", msg.ID))
		return &msg, nil
	}

	evt := events.NewEvent(events.ContactSubmitted, fmt.Sprintf("contact-%d", msg.ID), ContactNotification{
		ContactID: msg.ID,
		Recipient: s.recipient,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Message:   msg.Message,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Error("Failed to queue contact notification", zap.Uint("contact_id", msg.ID), zap.Error(err))
	}
	return &msg, nil
}

func (s *ContactService) List(ctx context.Context, unreadOnly bool, page Page) ([]model.ContactMessage, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&model.ContactMessage{})
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var messages []model.ContactMessage
	pagination, err := paginate(q, page, &messages, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at desc").Order("id desc")
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list contact messages: %w", err)
	}
	return messages, pagination, nil
}

// MarkRead stamps the message as read; marking twice keeps the first time
func (s *ContactService) MarkRead(ctx context.Context, id uint) (*model.ContactMessage, error) {
	var msg model.ContactMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, id).Error; err != nil {
			return notFoundOr(err, "contact message")
		}
		if msg.ReadAt != nil {
			return nil
		}
		now := s.now().UTC()
		msg.ReadAt = &now
		return tx.Model(&msg).Update("read_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
