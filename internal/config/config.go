// Package config centralises every fallback literal and threshold the
// derivation pipeline uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file written by `perfreport init`.
const DefaultFile = "perfreport.yaml"

// Defaults holds the values substituted for absent input fields and the
// constants the classifier and estimator work with.
type Defaults struct {
	TargetURL               string     `yaml:"target_url"`
	Environment             string     `yaml:"environment"`
	BucketWidthSeconds      float64    `yaml:"bucket_width_seconds"`
	FallbackDurationSeconds float64    `yaml:"fallback_duration_seconds"`
	SafetyMargin            float64    `yaml:"safety_margin"`
	SlowEndpointP95Ms       float64    `yaml:"slow_endpoint_p95_ms"`
	Thresholds              Thresholds `yaml:"thresholds"`
}

// Thresholds drive the health tier cascade.
type Thresholds struct {
	CriticalSuccessRate float64 `yaml:"critical_success_rate"`
	DegradedSuccessRate float64 `yaml:"degraded_success_rate"`
	DegradedP95Ms       float64 `yaml:"degraded_p95_ms"`
}

func Default() Defaults {
	return Defaults{
		TargetURL:               "https://hellobd.news",
		Environment:             "N/A",
		BucketWidthSeconds:      10,
		FallbackDurationSeconds: 60,
		SafetyMargin:            0.8,
		SlowEndpointP95Ms:       2000,
		Thresholds: Thresholds{
			CriticalSuccessRate: 90,
			DegradedSuccessRate: 98,
			DegradedP95Ms:       3000,
		},
	}
}

// Load reads a YAML file over Default. Fields absent from the file keep
// their default values.
func Load(path string) (Defaults, error) {
	d := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Defaults{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return Defaults{}, fmt.Errorf("config %s: %w", path, err)
	}
	return d, nil
}

// LoadOptional behaves like Load but returns Default when path does not exist.
func LoadOptional(path string) (Defaults, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate rejects values the pipeline cannot work with.
func (d Defaults) Validate() error {
	if d.BucketWidthSeconds <= 0 {
		return fmt.Errorf("bucket_width_seconds must be positive")
	}
	if d.FallbackDurationSeconds <= 0 {
		return fmt.Errorf("fallback_duration_seconds must be positive")
	}
	if d.SafetyMargin <= 0 || d.SafetyMargin > 1 {
		return fmt.Errorf("safety_margin must be in (0, 1]")
	}
	t := d.Thresholds
	if t.CriticalSuccessRate > t.DegradedSuccessRate {
		return fmt.Errorf("critical_success_rate (%g) exceeds degraded_success_rate (%g)", t.CriticalSuccessRate, t.DegradedSuccessRate)
	}
	if t.DegradedP95Ms <= 0 {
		return fmt.Errorf("degraded_p95_ms must be positive")
	}
	return nil
}

// Marshal renders d as YAML.
func (d Defaults) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Environment variables recognised by ApplyEnv.
const (
	EnvTarget           = "PERFREPORT_TARGET_URL"
	EnvEnvironment      = "PERFREPORT_ENVIRONMENT"
	EnvFallbackDuration = "PERFREPORT_FALLBACK_DURATION_SECONDS"
	EnvSafetyMargin     = "PERFREPORT_SAFETY_MARGIN"
)

// ApplyEnv loads envFile (if present) into the process environment and
// applies PERFREPORT_* overrides to d.
func ApplyEnv(d Defaults, envFile string) (Defaults, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Defaults{}, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}
	d.TargetURL = getEnvString(EnvTarget, d.TargetURL)
	d.Environment = getEnvString(EnvEnvironment, d.Environment)

	var err error
	if d.FallbackDurationSeconds, err = getEnvFloat(EnvFallbackDuration, d.FallbackDurationSeconds); err != nil {
		return Defaults{}, err
	}
	if d.SafetyMargin, err = getEnvFloat(EnvSafetyMargin, d.SafetyMargin); err != nil {
		return Defaults{}, err
	}
	return d, d.Validate()
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}
