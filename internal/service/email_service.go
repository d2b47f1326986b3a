package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"cantogame/internal/report"
)

// sesClient is the part of the SES client the email service uses
type sesClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client    sesClient
	fromEmail string
	fromName  string
	enabled   bool
	debug     bool
}

// NewEmailService creates a new email service. An empty fromEmail creates a
// disabled service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, debug bool) (*EmailService, error) {
	if fromEmail == "" {
		slog.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{debug: debug}, nil
	}

	if debug {
		slog.Debug("initializing email service", "region", awsRegion, "from", fromEmail, "from_name", fromName)
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("email service enabled", "from", fromEmail, "region", awsRegion)
	return &EmailService{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		debug:     debug,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendClassReport emails a rendered class report to toEmail
func (s *EmailService) SendClassReport(ctx context.Context, toEmail string, class *report.Class) error {
	if !s.enabled {
		slog.Info("skipping email send (service disabled)", "kind", "class_report", "to", toEmail)
		return nil
	}

	htmlBody, err := report.HTML(class)
	if err != nil {
		return err
	}
	textBody := report.Text(class) + "\n---\nThis is an automated email from Cantogame. Please do not reply.\n"

	if s.debug {
		slog.Debug("sending class report", "to", toEmail, "html_bytes", len(htmlBody), "text_bytes", len(textBody))
	}
	return s.sendEmail(ctx, toEmail, class.Title(), htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	if s.debug && result.MessageId != nil {
		slog.Debug("SES SendEmail succeeded", "message_id", *result.MessageId)
	}
	slog.Info("email sent", "to", toEmail, "subject", subject)
	return nil
}
