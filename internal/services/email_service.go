package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

// EmailSender delivers one HTML message.
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

type resendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender sends through the Resend API.
func NewResendSender(apiKey, from string) EmailSender {
	return &resendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *resendSender) Send(ctx context.Context, to []string, subject, html string) error {
	_, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    html,
	})
	return err
}

// ApprovalRequest describes a budget or payment that just became pending.
type ApprovalRequest struct {
	Entity      string
	ID          uint
	Code        string
	Amount      decimal.Decimal
	Currency    string
	RequestedBy string
}

// EmailService tells approvers that something waits for their decision.
// Delivery runs on the worker and never fails the request that triggered it.
type EmailService struct {
	sender    EmailSender
	approvers []string
	appURL    string
	async     AsyncRunner
}

func NewEmailService(sender EmailSender, approvers []string, appURL string, async AsyncRunner) *EmailService {
	return &EmailService{
		sender:    sender,
		approvers: approvers,
		appURL:    strings.TrimRight(appURL, "/"),
		async:     async,
	}
}

func (s *EmailService) enabled() bool {
	return s != nil && s.sender != nil && len(s.approvers) > 0
}

func (s *EmailService) NotifyApprovalRequested(ctx context.Context, req ApprovalRequest) {
	if !s.enabled() {
		return
	}
	log := logger.WithContext(ctx)

	title := "Budget"
	if req.Entity == "payment" {
		title = "Payment"
	}
	link := ""
	if s.appURL != "" {
		link = fmt.Sprintf("%s/%ss/%d", s.appURL, req.Entity, req.ID)
	}
	data := struct {
		Title, Code, Amount, Currency, RequestedBy, Link string
	}{
		Title:       title,
		Code:        req.Code,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		RequestedBy: req.RequestedBy,
		Link:        link,
	}

	body, err := s.renderTemplate("approval_requested.html", data)
	if err != nil {
		log.Error("failed to render approval email", "error", err)
		return
	}
	subject := fmt.Sprintf("%s %s needs approval", title, req.Code)

	send := func(ctx context.Context) error {
		if err := s.sender.Send(ctx, s.approvers, subject, body); err != nil {
			return fmt.Errorf("failed to email approvers about %s %s: %w", req.Entity, req.Code, err)
		}
		logger.Info("approval email sent", "entity", req.Entity, "code", req.Code, "recipients", len(s.approvers))
		return nil
	}
	if s.async == nil {
		if err := send(ctx); err != nil {
			log.Error("approval email failed", "error", err)
		}
		return
	}
	s.async.EnqueueAsync("approval-email", send)
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
