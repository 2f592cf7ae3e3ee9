package gcp

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type StorageMode string

const (
	StorageModeGCS      StorageMode = "gcs"
	StorageModeEmulator StorageMode = "gcs_emulator"
)

// StorageConfig selects between real GCS and a fake-gcs-server style
// emulator reachable at EmulatorHost.
type StorageConfig struct {
	Mode          StorageMode
	EmulatorHost  string
	PublicBaseURL string
}

func (c StorageConfig) IsEmulator() bool { return c.Mode == StorageModeEmulator }

type StorageConfigError struct {
	Field string
	Value string
	Cause error
}

func (e *StorageConfigError) Error() string {
	if e.Field == "OBJECT_STORAGE_MODE" {
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, StorageModeGCS, StorageModeEmulator)
	}
	if e.Value == "" {
		return fmt.Sprintf("%s is required in %s mode", e.Field, StorageModeEmulator)
	}
	return fmt.Sprintf("invalid %s=%q; expected absolute URL like http://fake-gcs:4443", e.Field, e.Value)
}

func (e *StorageConfigError) Unwrap() error { return e.Cause }

// StorageConfigFromEnv reads OBJECT_STORAGE_MODE, STORAGE_EMULATOR_HOST and
// OBJECT_STORAGE_PUBLIC_BASE_URL. An emulator host without an explicit mode
// implies emulator mode.
func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		EmulatorHost:  strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL")), "/"),
	}
	raw := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE"))
	switch StorageMode(strings.ToLower(raw)) {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeEmulator
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeEmulator:
		cfg.Mode = StorageModeEmulator
	default:
		return cfg, &StorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: raw}
	}
	return cfg, cfg.Validate()
}

func (c StorageConfig) Validate() error {
	switch c.Mode {
	case StorageModeGCS, StorageModeEmulator:
	default:
		return &StorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: string(c.Mode)}
	}
	if c.PublicBaseURL != "" {
		if err := checkAbsoluteURL(c.PublicBaseURL); err != nil {
			return &StorageConfigError{Field: "OBJECT_STORAGE_PUBLIC_BASE_URL", Value: c.PublicBaseURL, Cause: err}
		}
	}
	if !c.IsEmulator() {
		return nil
	}
	if c.EmulatorHost == "" {
		return &StorageConfigError{Field: "STORAGE_EMULATOR_HOST"}
	}
	if err := checkAbsoluteURL(c.EmulatorHost); err != nil {
		return &StorageConfigError{Field: "STORAGE_EMULATOR_HOST", Value: c.EmulatorHost, Cause: err}
	}
	return nil
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("missing scheme or host")
	}
	return nil
}
