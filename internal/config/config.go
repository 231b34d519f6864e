// Package config builds the runtime configuration from an optional YAML file
// and the environment. Load is called once by the entry point and the result
// is passed down explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig is matched by every configuration error
var ErrConfig = errors.New("configuration error")

// MissingEnvError reports a required setting that was not provided
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variable: %s", e.Name)
}

func (e *MissingEnvError) Is(target error) bool {
	return target == ErrConfig
}

// Store backends
const (
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
)

// Notifiers
const (
	NotifierTwilio   = "twilio"
	NotifierTelegram = "telegram"
	NotifierTwitter  = "twitter"
	NotifierDryRun   = "dryrun"
)

// Config holds every setting of one invocation
type Config struct {
	Handler  string `yaml:"handler"`
	LogLevel string `yaml:"log_level"`

	AWSRegion      string `yaml:"aws_region"`
	StoreBackend   string `yaml:"store_backend"`
	EventsTable    string `yaml:"events_table_name"`
	DynamoEndpoint string `yaml:"dynamodb_endpoint"`
	BatchWrites    bool   `yaml:"store_batch_writes"`
	RedisURL       string `yaml:"redis_url"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
	SQLitePath     string `yaml:"sqlite_path"`
	DataDir        string `yaml:"data_dir"`

	SourceURL          string `yaml:"source_url"`
	ExtractionStrategy string `yaml:"extraction_strategy"`
	EmbeddedScriptID   string `yaml:"embedded_script_id"`
	EmbeddedKeyPath    string `yaml:"embedded_key_path"`
	IdentityScheme     string `yaml:"identity_scheme"`

	Notifier        string `yaml:"notifier"`
	NotifyNewEvents bool   `yaml:"notify_new_events"`

	TwilioAccountSIDSecret string `yaml:"twilio_account_sid_secret_name"`
	TwilioAuthTokenSecret  string `yaml:"twilio_auth_token_secret_name"`
	TwilioFromSecret       string `yaml:"twilio_from_phone_number_secret_name"`
	TwilioToSecret         string `yaml:"twilio_to_phone_number_secret_name"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	TwitterAPIKey       string `yaml:"twitter_api_key"`
	TwitterAPISecret    string `yaml:"twitter_api_secret"`
	TwitterAccessToken  string `yaml:"twitter_access_token"`
	TwitterAccessSecret string `yaml:"twitter_access_secret"`

	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		LogLevel:           "INFO",
		AWSRegion:          "us-east-2",
		StoreBackend:       BackendDynamoDB,
		BatchWrites:        true,
		RedisKeyPrefix:     "mothership:event:",
		DataDir:            "~/.local/share/mothership-events",
		SourceURL:          "https://comedymothership.com/shows",
		ExtractionStrategy: "cards",
		EmbeddedScriptID:   "__NEXT_DATA__",
		EmbeddedKeyPath:    "props.pageProps.events",
		Notifier:           NotifierTwilio,
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE, then the
// environment. getenv is usually os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %w", ErrConfig, path, err)
		}
	}

	strs := map[string]*string{
		"HANDLER":                              &cfg.Handler,
		"LOG_LEVEL":                            &cfg.LogLevel,
		"AWS_REGION":                           &cfg.AWSRegion,
		"STORE_BACKEND":                        &cfg.StoreBackend,
		"EVENTS_TABLE_NAME":                    &cfg.EventsTable,
		"DYNAMODB_ENDPOINT":                    &cfg.DynamoEndpoint,
		"REDIS_URL":                            &cfg.RedisURL,
		"REDIS_KEY_PREFIX":                     &cfg.RedisKeyPrefix,
		"SQLITE_PATH":                          &cfg.SQLitePath,
		"DATA_DIR":                             &cfg.DataDir,
		"SOURCE_URL":                           &cfg.SourceURL,
		"EXTRACTION_STRATEGY":                  &cfg.ExtractionStrategy,
		"EMBEDDED_SCRIPT_ID":                   &cfg.EmbeddedScriptID,
		"EMBEDDED_KEY_PATH":                    &cfg.EmbeddedKeyPath,
		"IDENTITY_SCHEME":                      &cfg.IdentityScheme,
		"NOTIFIER":                             &cfg.Notifier,
		"TWILIO_ACCOUNT_SID_SECRET_NAME":       &cfg.TwilioAccountSIDSecret,
		"TWILIO_AUTH_TOKEN_SECRET_NAME":        &cfg.TwilioAuthTokenSecret,
		"TWILIO_FROM_PHONE_NUMBER_SECRET_NAME": &cfg.TwilioFromSecret,
		"TWILIO_TO_PHONE_NUMBER_SECRET_NAME":   &cfg.TwilioToSecret,
		"TELEGRAM_BOT_TOKEN":                   &cfg.TelegramBotToken,
		"TELEGRAM_CHAT_ID":                     &cfg.TelegramChatID,
		"TWITTER_API_KEY":                      &cfg.TwitterAPIKey,
		"TWITTER_API_SECRET":                   &cfg.TwitterAPISecret,
		"TWITTER_ACCESS_TOKEN":                 &cfg.TwitterAccessToken,
		"TWITTER_ACCESS_SECRET":                &cfg.TwitterAccessSecret,
		"METRICS_TEXTFILE":                     &cfg.MetricsTextfile,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"STORE_BATCH_WRITES": &cfg.BatchWrites,
		"NOTIFY_NEW_EVENTS":  &cfg.NotifyNewEvents,
	}
	for name, dst := range bools {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s must be a boolean, got %q", ErrConfig, name, v)
		}
		*dst = b
	}

	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.Notifier = strings.ToLower(cfg.Notifier)
	cfg.ExtractionStrategy = strings.ToLower(cfg.ExtractionStrategy)

	return cfg, nil
}

// RequireDetect checks the settings the detection operation needs
func (c Config) RequireDetect() error {
	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.EventsTable == "" {
			return &MissingEnvError{Name: "EVENTS_TABLE_NAME"}
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return &MissingEnvError{Name: "REDIS_URL"}
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return &MissingEnvError{Name: "SQLITE_PATH"}
		}
	case BackendFile:
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrConfig, c.StoreBackend)
	}

	switch c.ExtractionStrategy {
	case "cards", "embedded":
	default:
		return fmt.Errorf("%w: unknown EXTRACTION_STRATEGY %q", ErrConfig, c.ExtractionStrategy)
	}

	if c.NotifyNewEvents {
		if err := c.RequireNotify(); err != nil {
			return err
		}
		return c.RequireRecipient()
	}
	return nil
}

// RequireNotify checks the credentials of the configured notifier
func (c Config) RequireNotify() error {
	var required []struct{ name, value string }
	switch c.Notifier {
	case NotifierTwilio:
		required = []struct{ name, value string }{
			{"TWILIO_ACCOUNT_SID_SECRET_NAME", c.TwilioAccountSIDSecret},
			{"TWILIO_AUTH_TOKEN_SECRET_NAME", c.TwilioAuthTokenSecret},
			{"TWILIO_FROM_PHONE_NUMBER_SECRET_NAME", c.TwilioFromSecret},
		}
	case NotifierTelegram:
		required = []struct{ name, value string }{
			{"TELEGRAM_BOT_TOKEN", c.TelegramBotToken},
		}
	case NotifierTwitter:
		required = []struct{ name, value string }{
			{"TWITTER_API_KEY", c.TwitterAPIKey},
			{"TWITTER_API_SECRET", c.TwitterAPISecret},
			{"TWITTER_ACCESS_TOKEN", c.TwitterAccessToken},
			{"TWITTER_ACCESS_SECRET", c.TwitterAccessSecret},
		}
	case NotifierDryRun:
	default:
		return fmt.Errorf("%w: unknown NOTIFIER %q", ErrConfig, c.Notifier)
	}

	for _, r := range required {
		if r.value == "" {
			return &MissingEnvError{Name: r.name}
		}
	}
	return nil
}

// RequireRecipient checks that a default recipient is configured.
// Twitter posts publicly and dry runs print, so neither needs one.
func (c Config) RequireRecipient() error {
	switch c.Notifier {
	case NotifierTwilio:
		if c.TwilioToSecret == "" {
			return &MissingEnvError{Name: "TWILIO_TO_PHONE_NUMBER_SECRET_NAME"}
		}
	case NotifierTelegram:
		if c.TelegramChatID == "" {
			return &MissingEnvError{Name: "TELEGRAM_CHAT_ID"}
		}
	}
	return nil
}
