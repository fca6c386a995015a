package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/askiguard/internal/alert"
)

// OutputConfig tunes the output validator.
type OutputConfig struct {
	MaxOutputLength        int     `yaml:"max_output_length" validate:"gt=0"`
	MaxInputLength         int     `yaml:"max_input_length" validate:"gt=0"`
	LongResponseLength     int     `yaml:"long_response_length" validate:"gt=0"`
	LongResponseConfidence float64 `yaml:"long_response_confidence" validate:"gte=0,lte=1"`
	AssertionLimit         int     `yaml:"assertion_limit" validate:"gte=0"`
	AssertionConfidence    float64 `yaml:"assertion_confidence" validate:"gte=0,lte=1"`
	SafeConfidence         float64 `yaml:"safe_confidence" validate:"gte=0,lte=1"`
	LearnedSafeConfidence  float64 `yaml:"learned_safe_confidence" validate:"gte=0,lte=1"`
	VerifyKeywords         int     `yaml:"verify_keywords" validate:"gt=0"`
	VerifyMinWordLength    int     `yaml:"verify_min_word_length" validate:"gt=0"`
	PatternsPath           string  `yaml:"patterns_path"`
}

// RulesConfig bounds the mutable rule database.
type RulesConfig struct {
	LearnedLimit      int `yaml:"learned_limit" validate:"gt=0"`
	BlockLogLimit     int `yaml:"block_log_limit" validate:"gt=0"`
	BlockLogTextLimit int `yaml:"block_log_text_limit" validate:"gt=0"`
	MinPatternLength  int `yaml:"min_pattern_length" validate:"gt=0"`
	PersistEvery      int `yaml:"persist_every" validate:"gt=0"`
}

// RiskWeights are the risk score contributions of non-blocking findings.
type RiskWeights struct {
	UnknownActionType  int `yaml:"unknown_action_type" validate:"gte=0"`
	FarAhead           int `yaml:"far_ahead" validate:"gte=0"`
	UnknownActor       int `yaml:"unknown_actor" validate:"gte=0"`
	UnusualCombination int `yaml:"unusual_combination" validate:"gte=0"`
	ApprovalRequired   int `yaml:"approval_required" validate:"gte=0"`
}

// RiskLevels are the score boundaries between low, medium and high.
type RiskLevels struct {
	MediumMin int `yaml:"medium_min" validate:"gt=0"`
	HighMin   int `yaml:"high_min" validate:"gtfield=MediumMin"`
}

// CommandConfig tunes the command validator.
type CommandConfig struct {
	PastTolerance      time.Duration `yaml:"past_tolerance" validate:"gte=0"`
	MaxHorizon         time.Duration `yaml:"max_horizon" validate:"gt=0"`
	FarAheadWarning    time.Duration `yaml:"far_ahead_warning" validate:"gt=0"`
	DeviationThreshold time.Duration `yaml:"deviation_threshold" validate:"gt=0"`
	MaxTitleLength     int           `yaml:"max_title_length" validate:"gt=0"`
	MaxContentLength   int           `yaml:"max_content_length" validate:"gt=0"`
	RelevanceThreshold float64       `yaml:"relevance_threshold" validate:"gte=0,lte=1"`
	RelevanceMinWords  int           `yaml:"relevance_min_words" validate:"gte=0"`
	KnownActors        []string      `yaml:"known_actors" validate:"min=1"`
	Timezone           string        `yaml:"timezone"`
	ExecutionLogLimit  int           `yaml:"execution_log_limit" validate:"gt=0"`
	RiskWeights        RiskWeights   `yaml:"risk_weights"`
	RiskLevels         RiskLevels    `yaml:"risk_levels"`
}

// Location resolves the configured timezone. Empty and "Local" mean the
// process-local zone.
func (c CommandConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// StorageConfig selects where mutable state is persisted.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=file sqlite memory"`
	Path   string `yaml:"path"`
}

// Config holds every configurable parameter.
type Config struct {
	Output       OutputConfig        `yaml:"output"`
	Rules        RulesConfig         `yaml:"rules"`
	Command      CommandConfig       `yaml:"command"`
	Storage      StorageConfig       `yaml:"storage"`
	AuditLog     string              `yaml:"audit_log"`
	ApprovalsDir string              `yaml:"approvals_dir"`
	Alerts       []alert.AlertConfig `yaml:"alerts" validate:"dive"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			MaxOutputLength:        2000,
			MaxInputLength:         500,
			LongResponseLength:     500,
			LongResponseConfidence: 0.7,
			AssertionLimit:         5,
			AssertionConfidence:    0.6,
			SafeConfidence:         1.0,
			LearnedSafeConfidence:  0.9,
			VerifyKeywords:         3,
			VerifyMinWordLength:    4,
		},
		Rules: RulesConfig{
			LearnedLimit:      200,
			BlockLogLimit:     100,
			BlockLogTextLimit: 200,
			MinPatternLength:  3,
			PersistEvery:      10,
		},
		Command: CommandConfig{
			PastTolerance:      30 * time.Second,
			MaxHorizon:         365 * 24 * time.Hour,
			FarAheadWarning:    30 * 24 * time.Hour,
			DeviationThreshold: 5 * time.Minute,
			MaxTitleLength:     500,
			MaxContentLength:   5000,
			RelevanceThreshold: 0.1,
			RelevanceMinWords:  3,
			KnownActors:        []string{"user", "aski", "cortex", "homer", "system"},
			Timezone:           "Local",
			ExecutionLogLimit:  100,
			RiskWeights: RiskWeights{
				UnknownActionType:  5,
				FarAhead:           5,
				UnknownActor:       3,
				UnusualCombination: 3,
				ApprovalRequired:   10,
			},
			RiskLevels: RiskLevels{
				MediumMin: 10,
				HighMin:   30,
			},
		},
		Storage: StorageConfig{
			Driver: "file",
		},
	}
}

// DefaultDir returns ~/.askiguard, or a temp directory when there is no home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "askiguard")
	}
	return filepath.Join(home, ".askiguard")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

var validate = validator.New()

// Validate checks field constraints and the timezone name.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Command.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Command.Timezone, err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to ~/.askiguard/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 of the raw
// file. When no file exists the hash is that of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, hashBytes(data), nil
}

// StoragePath returns the configured storage path or the driver default.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Driver == "sqlite" {
		return filepath.Join(DefaultDir(), "askiguard.db")
	}
	return filepath.Join(DefaultDir(), "state")
}

// ApprovalsPath returns the approvals directory or its default.
func (c *Config) ApprovalsPath() string {
	if c.ApprovalsDir != "" {
		return c.ApprovalsDir
	}
	return filepath.Join(DefaultDir(), "pending")
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}
