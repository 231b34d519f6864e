package handler

import (
	"context"
	"fmt"
	"io"

	"github.com/pfrederiksen/mothership-events/internal/config"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
	"github.com/pfrederiksen/mothership-events/internal/notifier"
	"github.com/pfrederiksen/mothership-events/internal/secrets"
	"github.com/pfrederiksen/mothership-events/internal/storage"
)

// DefaultDeps wires the real backends. Dry-run messages are written to out.
func DefaultDeps(log *logger.Logger, m *metrics.Metrics, out io.Writer) Deps {
	return Deps{
		Log:       log,
		Metrics:   m,
		OpenStore: OpenStore,
		NewSender: func(ctx context.Context, cfg config.Config) (notifier.Sender, string, error) {
			var resolver secrets.Resolver
			if cfg.Notifier == config.NotifierTwilio {
				sm, err := secrets.NewSecretsManager(ctx, cfg.AWSRegion)
				if err != nil {
					return nil, "", err
				}
				resolver = sm
			}
			return BuildSender(ctx, cfg, resolver, out)
		},
	}
}

// OpenStore opens the backend named by cfg.StoreBackend
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		return storage.NewDynamoStore(ctx, storage.DynamoConfig{
			Table:    cfg.EventsTable,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.DynamoEndpoint,
			Batch:    cfg.BatchWrites,
		})
	case config.BackendRedis:
		return storage.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.BatchWrites)
	case config.BackendSQLite:
		return storage.NewSQLiteStore(ctx, cfg.SQLitePath, cfg.BatchWrites)
	case config.BackendFile:
		return storage.NewFileStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("%w: unknown STORE_BACKEND %q", config.ErrConfig, cfg.StoreBackend)
	}
}

// BuildSender creates the configured notifier and returns it with its default
// recipient. Twilio credentials and numbers are looked up through r, all
// before the first send.
func BuildSender(ctx context.Context, cfg config.Config, r secrets.Resolver, out io.Writer) (notifier.Sender, string, error) {
	switch cfg.Notifier {
	case config.NotifierTwilio:
		if r == nil {
			return nil, "", fmt.Errorf("no secrets resolver for Twilio credentials")
		}
		vals, err := secrets.ResolveAll(ctx, r,
			cfg.TwilioAccountSIDSecret,
			cfg.TwilioAuthTokenSecret,
			cfg.TwilioFromSecret,
			cfg.TwilioToSecret,
		)
		if err != nil {
			return nil, "", fmt.Errorf("resolving Twilio secrets: %w", err)
		}
		to := vals[cfg.TwilioToSecret]
		s, err := notifier.NewTwilioSender(
			vals[cfg.TwilioAccountSIDSecret],
			vals[cfg.TwilioAuthTokenSecret],
			vals[cfg.TwilioFromSecret],
			to,
		)
		if err != nil {
			return nil, "", err
		}
		return s, to, nil

	case config.NotifierTelegram:
		s, err := notifier.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.TelegramChatID, nil

	case config.NotifierTwitter:
		s, err := notifier.NewTwitterSender(notifier.TwitterCredentials{
			APIKey:       cfg.TwitterAPIKey,
			APISecret:    cfg.TwitterAPISecret,
			AccessToken:  cfg.TwitterAccessToken,
			AccessSecret: cfg.TwitterAccessSecret,
		})
		if err != nil {
			return nil, "", err
		}
		return s, "", nil

	case config.NotifierDryRun:
		return notifier.NewDryRunSender(out), "", nil

	default:
		return nil, "", fmt.Errorf("%w: unknown NOTIFIER %q", config.ErrConfig, cfg.Notifier)
	}
}
