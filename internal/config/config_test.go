package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func envFunc(env map[string]string) func(string) string {
	return func(name string) string { return env[name] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(envFunc(nil))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg != Default() {
		t.Errorf("Load() with empty env = %+v, want defaults", cfg)
	}
	if cfg.AWSRegion != "us-east-2" {
		t.Errorf("AWSRegion = %q, want us-east-2", cfg.AWSRegion)
	}
	if !cfg.BatchWrites {
		t.Error("BatchWrites should default to true")
	}
	if cfg.NotifyNewEvents {
		t.Error("NotifyNewEvents should default to false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := Load(envFunc(map[string]string{
		"HANDLER":             "GET_NEW_MOTHERSHIP_EVENTS",
		"EVENTS_TABLE_NAME":   "MothershipEvents",
		"STORE_BACKEND":       "Redis",
		"STORE_BATCH_WRITES":  "false",
		"NOTIFY_NEW_EVENTS":   "1",
		"EXTRACTION_STRATEGY": "embedded",
		"AWS_REGION":          "  us-west-2 ",
	}))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Handler != "GET_NEW_MOTHERSHIP_EVENTS" {
		t.Errorf("Handler = %q", cfg.Handler)
	}
	if cfg.StoreBackend != BackendRedis {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendRedis)
	}
	if cfg.BatchWrites {
		t.Error("BatchWrites = true, want false")
	}
	if !cfg.NotifyNewEvents {
		t.Error("NotifyNewEvents = false, want true")
	}
	if cfg.AWSRegion != "us-west-2" {
		t.Errorf("AWSRegion = %q, want trimmed us-west-2", cfg.AWSRegion)
	}
}

func TestLoad_InvalidBool(t *testing.T) {
	_, err := Load(envFunc(map[string]string{"STORE_BATCH_WRITES": "maybe"}))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("Load() error = %v, want ErrConfig", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store_backend: sqlite
sqlite_path: /tmp/events.db
notifier: telegram
telegram_chat_id: "42"
store_batch_writes: false
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envFunc(map[string]string{
		"CONFIG_FILE":      path,
		"TELEGRAM_CHAT_ID": "99",
	}))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.StoreBackend != BackendSQLite || cfg.SQLitePath != "/tmp/events.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.TelegramChatID != "99" {
		t.Errorf("TelegramChatID = %q, env should override file", cfg.TelegramChatID)
	}
	if cfg.BatchWrites {
		t.Error("BatchWrites = true, want false from file")
	}
	// Unset in the file, so the default survives
	if cfg.SourceURL != Default().SourceURL {
		t.Errorf("SourceURL = %q, want default", cfg.SourceURL)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("store_backend: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(t.TempDir(), "missing.yaml"), bad} {
		_, err := Load(envFunc(map[string]string{"CONFIG_FILE": path}))
		if !errors.Is(err, ErrConfig) {
			t.Errorf("Load(%s) error = %v, want ErrConfig", path, err)
		}
	}
}

func TestRequireDetect(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		missing string
		wantErr bool
	}{
		{
			name:    "dynamodb needs table",
			modify:  func(c *Config) {},
			missing: "EVENTS_TABLE_NAME",
		},
		{
			name:   "dynamodb with table",
			modify: func(c *Config) { c.EventsTable = "MothershipEvents" },
		},
		{
			name:    "redis needs url",
			modify:  func(c *Config) { c.StoreBackend = BackendRedis },
			missing: "REDIS_URL",
		},
		{
			name:    "sqlite needs path",
			modify:  func(c *Config) { c.StoreBackend = BackendSQLite },
			missing: "SQLITE_PATH",
		},
		{
			name:   "file store needs nothing",
			modify: func(c *Config) { c.StoreBackend = BackendFile },
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.StoreBackend = "mongo" },
			wantErr: true,
		},
		{
			name: "unknown strategy",
			modify: func(c *Config) {
				c.StoreBackend = BackendFile
				c.ExtractionStrategy = "xpath"
			},
			wantErr: true,
		},
		{
			name: "fused mode needs recipient",
			modify: func(c *Config) {
				c.StoreBackend = BackendFile
				c.NotifyNewEvents = true
				c.TwilioAccountSIDSecret = "sid"
				c.TwilioAuthTokenSecret = "token"
				c.TwilioFromSecret = "from"
			},
			missing: "TWILIO_TO_PHONE_NUMBER_SECRET_NAME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.RequireDetect()

			switch {
			case tt.missing != "":
				var missing *MissingEnvError
				if !errors.As(err, &missing) || missing.Name != tt.missing {
					t.Fatalf("RequireDetect() error = %v, want missing %s", err, tt.missing)
				}
				if !errors.Is(err, ErrConfig) {
					t.Error("MissingEnvError should match ErrConfig")
				}
			case tt.wantErr:
				if !errors.Is(err, ErrConfig) {
					t.Errorf("RequireDetect() error = %v, want ErrConfig", err)
				}
			default:
				if err != nil {
					t.Errorf("RequireDetect() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestRequireNotify(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		missing string
	}{
		{
			name:    "twilio without secrets",
			cfg:     Config{Notifier: NotifierTwilio},
			missing: "TWILIO_ACCOUNT_SID_SECRET_NAME",
		},
		{
			name: "twilio without from number",
			cfg: Config{
				Notifier:               NotifierTwilio,
				TwilioAccountSIDSecret: "sid",
				TwilioAuthTokenSecret:  "token",
			},
			missing: "TWILIO_FROM_PHONE_NUMBER_SECRET_NAME",
		},
		{
			name:    "telegram without token",
			cfg:     Config{Notifier: NotifierTelegram},
			missing: "TELEGRAM_BOT_TOKEN",
		},
		{
			name:    "twitter partial",
			cfg:     Config{Notifier: NotifierTwitter, TwitterAPIKey: "k", TwitterAPISecret: "s"},
			missing: "TWITTER_ACCESS_TOKEN",
		},
		{
			name: "dryrun",
			cfg:  Config{Notifier: NotifierDryRun},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.RequireNotify()
			if tt.missing == "" {
				if err != nil {
					t.Errorf("RequireNotify() unexpected error: %v", err)
				}
				return
			}
			var missing *MissingEnvError
			if !errors.As(err, &missing) || missing.Name != tt.missing {
				t.Errorf("RequireNotify() error = %v, want missing %s", err, tt.missing)
			}
		})
	}

	if err := (Config{Notifier: "pigeon"}).RequireNotify(); !errors.Is(err, ErrConfig) {
		t.Errorf("unknown notifier error = %v, want ErrConfig", err)
	}
}
