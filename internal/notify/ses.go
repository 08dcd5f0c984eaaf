package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/inkfable/storypress/internal/aws"
)

// SESMailer sends transactional email through SESv2.
type SESMailer struct {
	client aws.SESAPI
	from   string
}

// NewSESMailer returns a mailer, or nil when no sender address is configured
// so the dispatcher runs in slot-only mode.
func NewSESMailer(client aws.SESAPI, from string) *SESMailer {
	if from == "" {
		return nil
	}
	return &SESMailer{client: client, from: from}
}

func (m *SESMailer) Send(ctx context.Context, to, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &m.from,
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &subject},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: &body},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
