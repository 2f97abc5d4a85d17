// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/craftkart/craftkart-backend/internal/config"
	"github.com/craftkart/craftkart-backend/internal/models"
)

// NotificationService fans negotiation events out to the parties involved:
// an in-app notification row per recipient plus an email when SMTP is
// configured. Failures are logged and never propagated into the write path.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// Negotiation notifications
func (s *NotificationService) SendDesignRequestNotification(record *models.DesignRequest, eventType, title string) error {
	message := title
	if record.QuoteAmount != nil {
		message = fmt.Sprintf("%s (current quote: %s)", title, record.QuoteAmount.StringFixed(2))
	}

	recipients := s.partiesOf(record)
	for _, user := range recipients {
		if err := s.createInAppNotification(user.ID, eventType, title, message, record.ID); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to create notification")
			continue
		}

		data := map[string]interface{}{
			"Username":   user.Username,
			"Title":      title,
			"Message":    message,
			"RequestURL": fmt.Sprintf("%s/design-requests/%s", s.config.Frontend.BaseURL, record.ID),
		}

		tmpl := s.getEmailTemplate("design_request_update")
		body, err := s.renderTemplate(tmpl.Body, data)
		if err != nil {
			logrus.WithError(err).Warn("Failed to render email template")
			continue
		}

		if err := s.sendEmail(user.Email, title, body); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send notification email")
		}
	}

	return nil
}

func (s *NotificationService) SendPaymentReceivedNotification(record *models.DesignRequest) error {
	amount := ""
	if record.AdvanceAmount != nil {
		amount = record.AdvanceAmount.StringFixed(2)
	}

	title := "Advance Payment Received"
	message := fmt.Sprintf("Advance payment of %s has been verified for your custom design request", amount)

	for _, user := range s.partiesOf(record) {
		if err := s.createInAppNotification(user.ID, "payment_received", title, message, record.ID); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to create notification")
			continue
		}

		data := map[string]interface{}{
			"Username":   user.Username,
			"Amount":     amount,
			"IsPriority": record.IsPriority,
			"RequestURL": fmt.Sprintf("%s/design-requests/%s", s.config.Frontend.BaseURL, record.ID),
		}

		tmpl := s.getEmailTemplate("payment_received")
		body, err := s.renderTemplate(tmpl.Body, data)
		if err != nil {
			logrus.WithError(err).Warn("Failed to render email template")
			continue
		}

		if err := s.sendEmail(user.Email, title, body); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send notification email")
		}
	}

	return nil
}

func (s *NotificationService) SendOrderCreatedNotification(record *models.DesignRequest, order *models.Order) error {
	title := "Custom Design Order Created"
	message := fmt.Sprintf("Your custom design request has been converted to order %s and is now in production", order.ID)

	for _, user := range s.partiesOf(record) {
		if err := s.createInAppNotification(user.ID, "order_created", title, message, record.ID); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to create notification")
			continue
		}

		data := map[string]interface{}{
			"Username": user.Username,
			"OrderID":  order.ID,
			"Amount":   order.Amount.StringFixed(2),
			"OrderURL": fmt.Sprintf("%s/orders/%s", s.config.Frontend.BaseURL, order.ID),
		}

		tmpl := s.getEmailTemplate("order_created")
		body, err := s.renderTemplate(tmpl.Body, data)
		if err != nil {
			logrus.WithError(err).Warn("Failed to render email template")
			continue
		}

		if err := s.sendEmail(user.Email, title, body); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send notification email")
		}
	}

	return nil
}

// Helper methods
func (s *NotificationService) partiesOf(record *models.DesignRequest) []models.User {
	ids := []uuid.UUID{record.BuyerID}
	if record.SellerID != nil {
		ids = append(ids, *record.SellerID)
	}

	var users []models.User
	if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		logrus.WithError(err).Warn("Failed to load notification recipients")
		return nil
	}
	return users
}

func (s *NotificationService) createInAppNotification(userID uuid.UUID, notifType, title, message string, recordID uuid.UUID) error {
	notification := &models.Notification{
		UserID:          userID,
		Type:            notifType,
		Title:           title,
		Message:         message,
		DesignRequestID: &recordID,
	}
	return s.db.Create(notification).Error
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("Email delivery skipped (SMTP not configured)")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"design_request_update": {
			Subject: "Design Request Update",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Title}}</h2>
	<p>Hello {{.Username}},</p>
	<p>{{.Message}}</p>
	<a href="{{.RequestURL}}">View Design Request</a>
	<p>Best regards,<br>CraftKart Team</p>
</body>
</html>`,
		},
		"payment_received": {
			Subject: "Advance Payment Received",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Advance Payment Received</h2>
	<p>Hello {{.Username}},</p>
	<p>An advance payment of ₹{{.Amount}} has been verified.</p>
	{{if .IsPriority}}<p>The full amount was paid up front, so this request is marked priority.</p>{{end}}
	<a href="{{.RequestURL}}">View Design Request</a>
	<p>Best regards,<br>CraftKart Team</p>
</body>
</html>`,
		},
		"order_created": {
			Subject: "Order Created",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Your Custom Design Is Going Into Production</h2>
	<p>Hello {{.Username}},</p>
	<p>Order {{.OrderID}} has been created for ₹{{.Amount}}.</p>
	<a href="{{.OrderURL}}">View Order</a>
	<p>Best regards,<br>CraftKart Team</p>
</body>
</html>`,
		},
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
