package notifier

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeMessages struct {
	params []*twilioApi.CreateMessageParams
	resp   *twilioApi.ApiV2010Message
	err    error
}

func (f *fakeMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &twilioApi.ApiV2010Message{}, nil
}

func TestNewTwilioSender_Validation(t *testing.T) {
	tests := []struct {
		name      string
		sid       string
		token     string
		from      string
		wantError bool
	}{
		{name: "valid", sid: "AC123", token: "secret", from: "+15550000"},
		{name: "missing sid", token: "secret", from: "+15550000", wantError: true},
		{name: "missing token", sid: "AC123", from: "+15550000", wantError: true},
		{name: "missing from", sid: "AC123", token: "secret", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewTwilioSender(tt.sid, tt.token, tt.from, "")
			if tt.wantError {
				if err == nil {
					t.Error("NewTwilioSender() expected error")
				}
				return
			}
			if err != nil || s == nil {
				t.Errorf("NewTwilioSender() = %v, %v", s, err)
			}
		})
	}
}

func TestTwilioSender_Send(t *testing.T) {
	fake := &fakeMessages{}
	s := &TwilioSender{api: fake, from: "+15550000", to: "+15550100"}

	if err := s.Send(context.Background(), "", "hello"); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if err := s.Send(context.Background(), "+15550199", "again"); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if len(fake.params) != 2 {
		t.Fatalf("CreateMessage called %d times, want 2", len(fake.params))
	}
	first := fake.params[0]
	if *first.To != "+15550100" || *first.From != "+15550000" || *first.Body != "hello" {
		t.Errorf("first message = to %s from %s body %q", *first.To, *first.From, *first.Body)
	}
	if *fake.params[1].To != "+15550199" {
		t.Errorf("explicit recipient not used: %s", *fake.params[1].To)
	}
}

func TestTwilioSender_Errors(t *testing.T) {
	apiErr := errors.New("status: 401")
	errMsg := "Invalid 'To' Phone Number"

	tests := []struct {
		name   string
		fake   *fakeMessages
		to     string
		target error
	}{
		{name: "api error", fake: &fakeMessages{err: apiErr}, to: "+1", target: apiErr},
		{name: "error message in response", fake: &fakeMessages{resp: &twilioApi.ApiV2010Message{ErrorMessage: &errMsg}}, to: "+1"},
		{name: "no recipient", fake: &fakeMessages{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &TwilioSender{api: tt.fake, from: "+15550000"}
			err := s.Send(context.Background(), tt.to, "hello")
			if err == nil {
				t.Fatal("Send() expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Send() error = %v, want wrapping %v", err, tt.target)
			}
		})
	}
}
