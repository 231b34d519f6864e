package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"
)

const (
	tweetLimit = 280
	// tweetInterval spaces consecutive posts
	tweetInterval = 2 * time.Second
)

type statusUpdater interface {
	Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, *http.Response, error)
}

// TwitterSender posts messages as tweets. The recipient is ignored.
type TwitterSender struct {
	statuses statusUpdater
	interval time.Duration
	last     time.Time
}

// TwitterCredentials holds the OAuth 1.0a keys of the posting account
type TwitterCredentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// NewTwitterSender creates a Twitter sender
func NewTwitterSender(creds TwitterCredentials) (*TwitterSender, error) {
	if creds.APIKey == "" || creds.APISecret == "" || creds.AccessToken == "" || creds.AccessSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials")
	}

	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := config.Client(oauth1.NoContext, token)
	client := twitter.NewClient(httpClient)

	return &TwitterSender{statuses: client.Statuses, interval: tweetInterval}, nil
}

func (s *TwitterSender) Send(ctx context.Context, _, message string) error {
	if !s.last.IsZero() {
		if wait := s.interval - time.Since(s.last); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	_, _, err := s.statuses.Update(formatTweet(message), nil)
	s.last = time.Now()
	if err != nil {
		return fmt.Errorf("failed to post tweet: %w", err)
	}
	return nil
}

// formatTweet fits message into a single tweet
func formatTweet(message string) string {
	runes := []rune(message)
	if len(runes) <= tweetLimit {
		return message
	}
	return string(runes[:tweetLimit-3]) + "..."
}
