package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service. When fromEmail is empty the
// service is disabled: every send becomes a logged no-op, which keeps local
// development working without SES credentials.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		slog.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("email service enabled",
		slog.String("from", fromEmail),
		slog.String("region", awsRegion),
	)
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, username, resetToken string) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.appBaseURL, resetToken)

	subject := "Reset your Waypost password"
	htmlBody := fmt.Sprintf(`
<p>Hi %s,</p>
<p>We received a request to reset your Waypost password. Click the link below to
choose a new one. The link is valid for one hour and can only be used once.</p>
<p><a href="%s">Reset your password</a></p>
<p>If you didn't request this, you can safely ignore this email.</p>
`, username, resetLink)
	textBody := fmt.Sprintf(
		"Hi %s,\n\nReset your Waypost password using this link (valid for one hour, single use):\n%s\n\nIf you didn't request this, ignore this email.\n",
		username, resetLink)

	return s.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendVerificationEmail sends an email verification link
func (s *EmailService) SendVerificationEmail(ctx context.Context, toEmail, username, verificationToken string) error {
	verifyLink := fmt.Sprintf("%s/verify-email?token=%s", s.appBaseURL, verificationToken)

	subject := "Verify your Waypost email address"
	htmlBody := fmt.Sprintf(`
<p>Hi %s,</p>
<p>Welcome to Waypost! Confirm your email address to finish setting up your account.
The link is valid for 24 hours.</p>
<p><a href="%s">Verify your email</a></p>
`, username, verifyLink)
	textBody := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Waypost! Verify your email address using this link (valid for 24 hours):\n%s\n",
		username, verifyLink)

	return s.send(ctx, toEmail, subject, htmlBody, textBody)
}

func (s *EmailService) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	if !s.enabled {
		slog.Info("skipping email send (service disabled)", slog.String("subject", subject))
		return nil
	}

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
					Text: &types.Content{Data: aws.String(textBody)},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
