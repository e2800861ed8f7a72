// Package config holds the run configuration and its viper binding.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	ErrNoBaseURL      = errors.New("baseUrl is required")
	ErrNoAnswers      = errors.New("answerSequence must not be empty")
	ErrBadConcurrency = errors.New("concurrencyLevel must be positive")
	ErrBadThreshold   = errors.New("errorRateThreshold must be within [0,1]")
)

type Config struct {
	// Remote service
	BaseURL     string `mapstructure:"baseUrl" json:"baseUrl"`
	SubmitPath  string `mapstructure:"submitPath" json:"submitPath"`
	StatPath    string `mapstructure:"statPath" json:"statPath"`
	PlanID      int    `mapstructure:"planId" json:"planId"`
	SuccessCode int    `mapstructure:"successCode" json:"successCode"`

	// Workload shape
	AnswerSequence                []string `mapstructure:"answerSequence" json:"answerSequence"`
	StudentCount                  int      `mapstructure:"studentCount" json:"studentCount"`
	QuestionCount                 int      `mapstructure:"questionCount" json:"questionCount"`
	QuestionOffset                int      `mapstructure:"questionOffset" json:"questionOffset"`
	StudentOffset                 int      `mapstructure:"studentOffset" json:"studentOffset"`
	StatQuestionIDs               []int    `mapstructure:"statQuestionIds" json:"statQuestionIds,omitempty"`
	StatQueriesPerSecondPerTarget int      `mapstructure:"statQueriesPerSecondPerTarget" json:"statQueriesPerSecondPerTarget"`

	// Concurrency levels. MaxConcurrency above ConcurrencyLevel turns the
	// run into a sweep in ConcurrencyStep increments.
	ConcurrencyLevel int `mapstructure:"concurrencyLevel" json:"concurrencyLevel"`
	MaxConcurrency   int `mapstructure:"maxConcurrency" json:"maxConcurrency,omitempty"`
	ConcurrencyStep  int `mapstructure:"concurrencyStep" json:"concurrencyStep"`
	LevelDurationSec int `mapstructure:"levelDurationSec" json:"levelDurationSec"`

	// Limits
	RequestTimeoutMs   int     `mapstructure:"requestTimeoutMs" json:"requestTimeoutMs"`
	ErrorRateThreshold float64 `mapstructure:"errorRateThreshold" json:"errorRateThreshold"`
	LatencyThresholdMs float64 `mapstructure:"latencyThresholdMs" json:"latencyThresholdMs"`

	// Outputs
	OutPrefix   string `mapstructure:"outPrefix" json:"outPrefix,omitempty"`
	MetricsAddr string `mapstructure:"metricsAddr" json:"metricsAddr,omitempty"`
	HistoryPath string `mapstructure:"historyPath" json:"historyPath,omitempty"`
	LogLevel    string `mapstructure:"logLevel" json:"logLevel"`
	LogFormat   string `mapstructure:"logFormat" json:"logFormat"`
}

// Default mirrors the reference workload: plan 19, five answers per
// student, 50 students, 100 concurrent submitters.
func Default() Config {
	return Config{
		BaseURL:                       "http://localhost:8080",
		SubmitPath:                    "/api/answer/submit-db",
		StatPath:                      "/api/answer/statistic/db/{questionId}/{planId}",
		PlanID:                        19,
		SuccessCode:                   200,
		AnswerSequence:                []string{"A", "B", "C", "C", "D"},
		StudentCount:                  50,
		QuestionCount:                 -1,
		QuestionOffset:                100,
		StudentOffset:                 100,
		StatQueriesPerSecondPerTarget: 5,
		ConcurrencyLevel:              100,
		ConcurrencyStep:               5,
		RequestTimeoutMs:              3000,
		ErrorRateThreshold:            0.04,
		LatencyThresholdMs:            3000,
		LogLevel:                      "info",
		LogFormat:                     "text",
	}
}

// SetDefaults registers every key with its default so env vars and config
// files can override any of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("baseUrl", d.BaseURL)
	v.SetDefault("submitPath", d.SubmitPath)
	v.SetDefault("statPath", d.StatPath)
	v.SetDefault("planId", d.PlanID)
	v.SetDefault("successCode", d.SuccessCode)
	v.SetDefault("answerSequence", d.AnswerSequence)
	v.SetDefault("studentCount", d.StudentCount)
	v.SetDefault("questionCount", d.QuestionCount)
	v.SetDefault("questionOffset", d.QuestionOffset)
	v.SetDefault("studentOffset", d.StudentOffset)
	v.SetDefault("statQuestionIds", []int{})
	v.SetDefault("statQueriesPerSecondPerTarget", d.StatQueriesPerSecondPerTarget)
	v.SetDefault("concurrencyLevel", d.ConcurrencyLevel)
	v.SetDefault("maxConcurrency", d.MaxConcurrency)
	v.SetDefault("concurrencyStep", d.ConcurrencyStep)
	v.SetDefault("levelDurationSec", d.LevelDurationSec)
	v.SetDefault("requestTimeoutMs", d.RequestTimeoutMs)
	v.SetDefault("errorRateThreshold", d.ErrorRateThreshold)
	v.SetDefault("latencyThresholdMs", d.LatencyThresholdMs)
	v.SetDefault("outPrefix", d.OutPrefix)
	v.SetDefault("metricsAddr", d.MetricsAddr)
	v.SetDefault("historyPath", d.HistoryPath)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFormat", d.LogFormat)
}

// Load decodes v into a validated Config. Comma separated strings (as they
// arrive from env vars) are accepted for list keys.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.DecodeHookFuncType(stringToIntSlice),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var intSliceType = reflect.TypeOf([]int{})

func stringToIntSlice(f reflect.Type, t reflect.Type, data any) (any, error) {
	if f.Kind() != reflect.String || t != intSliceType {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	if raw == "" {
		return []int{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse id list %q: %w", raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if len(c.AnswerSequence) == 0 {
		return ErrNoAnswers
	}
	if c.ConcurrencyLevel <= 0 {
		return ErrBadConcurrency
	}
	if c.ErrorRateThreshold < 0 || c.ErrorRateThreshold > 1 {
		return ErrBadThreshold
	}
	if c.RequestTimeoutMs <= 0 {
		return fmt.Errorf("requestTimeoutMs must be positive, got %d", c.RequestTimeoutMs)
	}
	if c.MaxConcurrency > c.ConcurrencyLevel && c.ConcurrencyStep <= 0 {
		return fmt.Errorf("concurrencyStep must be positive for a sweep up to %d", c.MaxConcurrency)
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// LevelDuration is zero when a level runs until a threshold is breached or
// the run is interrupted.
func (c Config) LevelDuration() time.Duration {
	return time.Duration(c.LevelDurationSec) * time.Second
}

// Levels lists the concurrency levels to test, in order.
func (c Config) Levels() []int {
	if c.MaxConcurrency <= c.ConcurrencyLevel || c.ConcurrencyStep <= 0 {
		return []int{c.ConcurrencyLevel}
	}
	var levels []int
	for l := c.ConcurrencyLevel; l <= c.MaxConcurrency; l += c.ConcurrencyStep {
		levels = append(levels, l)
	}
	return levels
}

// Sweep reports whether more than one level is tested.
func (c Config) Sweep() bool {
	return len(c.Levels()) > 1
}
