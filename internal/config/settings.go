package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/remitos/internal/budget"
	"github.com/Veraticus/remitos/internal/classification"
	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/engine"
	"github.com/Veraticus/remitos/internal/ocr"
	"github.com/spf13/viper"
)

// Budget store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Settings is the typed view of the application configuration.
type Settings struct {
	Detection DetectionSettings
	OutputDir string
	Database  string
	Budget    BudgetSettings
	OCR       OCRSettings
}

// DetectionSettings configures the identifier detector.
type DetectionSettings struct {
	Pattern      string
	SplitPattern string
}

// OCRSettings configures OCR escalation.
type OCRSettings struct {
	APIKey       string
	Endpoint     string
	Language     string
	Engine       int
	Timeout      time.Duration
	RetryBackoff time.Duration
	CallPause    time.Duration
	Enabled      bool
}

// BudgetSettings configures the OCR call budget and where its window is kept.
type BudgetSettings struct {
	Store         string
	RedisAddr     string
	RedisPassword string
	RedisKey      string
	Window        time.Duration
	PerRunCap     int
	PerHourCap    int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("detection.pattern", classification.DefaultUserPattern)
	v.SetDefault("detection.split_pattern", classification.DefaultSplitPattern)

	v.SetDefault("ocr.enabled", false)
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.endpoint", ocr.DefaultEndpoint)
	v.SetDefault("ocr.language", ocr.DefaultLanguage)
	v.SetDefault("ocr.engine", ocr.DefaultEngine)
	v.SetDefault("ocr.timeout", ocr.DefaultTimeout)
	v.SetDefault("ocr.retry_backoff", ocr.DefaultRetryBackoff)
	v.SetDefault("ocr.call_pause", engine.DefaultCallPause)

	v.SetDefault("budget.per_run_cap", engine.DefaultPerRunCap)
	v.SetDefault("budget.per_hour_cap", engine.DefaultPerHourCap)
	v.SetDefault("budget.window", budget.DefaultWindow)
	v.SetDefault("budget.store", StoreSQLite)
	v.SetDefault("budget.redis.addr", "")
	v.SetDefault("budget.redis.password", "")
	v.SetDefault("budget.redis.key", budget.DefaultRedisKey)

	v.SetDefault("database.path", "~/.local/share/remitos/remitos.db")
	v.SetDefault("output.dir", ".")
}

// EnvPrefix prefixes every environment override, e.g. REMITOS_OCR_API_KEY for ocr.api_key.
const EnvPrefix = "REMITOS"

// BindEnv makes v read REMITOS_* variables, mapping nested keys with underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads typed settings from v and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Detection: DetectionSettings{
			Pattern:      v.GetString("detection.pattern"),
			SplitPattern: v.GetString("detection.split_pattern"),
		},
		OCR: OCRSettings{
			Enabled:      v.GetBool("ocr.enabled"),
			APIKey:       strings.TrimSpace(v.GetString("ocr.api_key")),
			Endpoint:     v.GetString("ocr.endpoint"),
			Language:     v.GetString("ocr.language"),
			Engine:       v.GetInt("ocr.engine"),
			Timeout:      v.GetDuration("ocr.timeout"),
			RetryBackoff: v.GetDuration("ocr.retry_backoff"),
			CallPause:    v.GetDuration("ocr.call_pause"),
		},
		Budget: BudgetSettings{
			PerRunCap:     v.GetInt("budget.per_run_cap"),
			PerHourCap:    v.GetInt("budget.per_hour_cap"),
			Window:        v.GetDuration("budget.window"),
			Store:         strings.ToLower(v.GetString("budget.store")),
			RedisAddr:     v.GetString("budget.redis.addr"),
			RedisPassword: v.GetString("budget.redis.password"),
			RedisKey:      v.GetString("budget.redis.key"),
		},
		Database:  ExpandPath(v.GetString("database.path")),
		OutputDir: ExpandPath(v.GetString("output.dir")),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks settings that would otherwise fail late.
// A malformed detection pattern is not an error here: the detector disables it.
func (s *Settings) Validate() error {
	switch s.Budget.Store {
	case StoreSQLite, StoreMemory:
	case StoreRedis:
		if s.Budget.RedisAddr == "" {
			return fmt.Errorf("%w: budget.redis.addr is required when budget.store is redis", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown budget.store %q", common.ErrInvalidConfig, s.Budget.Store)
	}

	if s.Budget.PerRunCap < 0 || s.Budget.PerHourCap < 0 {
		return fmt.Errorf("%w: budget caps cannot be negative", common.ErrInvalidConfig)
	}
	if s.OCR.Timeout < 0 || s.OCR.RetryBackoff < 0 || s.OCR.CallPause < 0 {
		return fmt.Errorf("%w: OCR durations cannot be negative", common.ErrInvalidConfig)
	}
	if s.Budget.Store == StoreSQLite && s.Database == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	return nil
}

// Credentials returns the OCR credentials. An empty key disables escalation.
func (s *Settings) Credentials() ocr.Credentials {
	return ocr.Credentials{APIKey: s.OCR.APIKey}
}

// OCRConfig builds the OCR client configuration.
func (s *Settings) OCRConfig() ocr.Config {
	return ocr.Config{
		Endpoint:     s.OCR.Endpoint,
		Language:     s.OCR.Language,
		Engine:       s.OCR.Engine,
		Timeout:      s.OCR.Timeout,
		RetryBackoff: s.OCR.RetryBackoff,
	}
}

// EngineConfig builds the orchestrator configuration.
func (s *Settings) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.PerRunCap = s.Budget.PerRunCap
	cfg.PerHourCap = s.Budget.PerHourCap
	cfg.Window = s.Budget.Window
	cfg.CallPause = s.OCR.CallPause
	cfg.Language = s.OCR.Language
	cfg.SplitPattern = s.Detection.SplitPattern
	return cfg
}
