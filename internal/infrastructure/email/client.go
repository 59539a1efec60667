// Package email provides the email client for sending analytics reports.
package email

import (
	"fmt"
	"os"

	"github.com/resendlabs/resend-go"
)

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendWeeklyReport(to []string, subject, textBody, htmlBody string) error
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService() (Service, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("REPORT_FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = "analytics@ampepsoc.org" // Default from address
	}

	fromName := os.Getenv("REPORT_FROM_NAME")
	if fromName == "" {
		fromName = "AmPepSoc Analytics" // Default from name
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendWeeklyReport sends the weekly analytics report to the configured
// recipients. The plain-text body is always present; the HTML body is
// optional.
func (c *ResendClient) SendWeeklyReport(to []string, subject, textBody, htmlBody string) error {
	if len(to) == 0 {
		return fmt.Errorf("no report recipients configured")
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      to,
		Subject: subject,
		Text:    textBody,
		Html:    htmlBody,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send weekly report via Resend: %w", err)
	}

	return nil
}
