package notifier

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST client used for SMS
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through Twilio
type TwilioSender struct {
	api  messageCreator
	from string
	to   string
}

// NewTwilioSender creates a Twilio SMS sender. to is used when Send is given
// no recipient and may be empty.
func NewTwilioSender(accountSID, authToken, from, to string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}
	if from == "" {
		return nil, fmt.Errorf("from phone number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from, to: to}, nil
}

func (s *TwilioSender) Send(ctx context.Context, to, message string) error {
	if to == "" {
		to = s.to
	}
	if to == "" {
		return fmt.Errorf("no recipient phone number")
	}
	// The Twilio client takes no context
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(message)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp != nil && resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio error: %s", *resp.ErrorMessage)
	}
	return nil
}
