package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"seadrop/clipboard"
	"seadrop/distance"
	"seadrop/protocol"
	"seadrop/transfer"
)

// runtimeFileName is the persisted runtime-tuning file, separate from
// config.json's device identity/network fields (spec §9 resolved open
// questions; SPEC_FULL.md §9 names config.RuntimeConfig.SmallFileThresholdBytes
// specifically).
const runtimeFileName = "runtime.json"

// RuntimeConfig holds the tunables spec.md leaves as per-deployment
// choices: proximity thresholds, chunk size, timeouts, and the small-file
// auto-accept cutoff.
type RuntimeConfig struct {
	Thresholds distance.Thresholds `json:"thresholds"`

	ChunkSizeBytes             uint32        `json:"chunk_size_bytes"`
	SmallFileThresholdBytes    uint64        `json:"small_file_threshold_bytes"`
	RequestTimeout             time.Duration `json:"request_timeout"`
	ClipboardAckTimeout        time.Duration `json:"clipboard_ack_timeout"`
	ClipboardHistoryCapacity   int           `json:"clipboard_history_capacity"`
	TransferHistoryCapacity    int           `json:"transfer_history_capacity"`
	MaxConsecutiveFileFailures int           `json:"max_consecutive_file_failures"`

	AutoAcceptWhenTrustedAndClose bool `json:"auto_accept_when_trusted_and_close"`
}

// DefaultSmallFileThresholdBytes is the resolved answer to SPEC_FULL.md §9
// open question 3: at Nearby zone, files at or under 10 MiB may auto-accept
// from a trusted peer. At Close and Intimate zones a trusted peer's files
// auto-accept whatever their size.
const DefaultSmallFileThresholdBytes = 10 * 1024 * 1024

// DefaultRuntimeConfig returns the out-of-the-box tuning, reusing each
// package's own defaults (distance.DefaultThresholds,
// protocol.DefaultChunkSize, transfer.DefaultRequestTimeout,
// clipboard.DefaultAckTimeout, clipboard.DefaultHistoryCapacity,
// transfer.DefaultHistoryCapacity, transfer.DefaultMaxConsecutiveFileFailures)
// so config never drifts from the code paths that actually consume these
// values.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Thresholds:                    distance.DefaultThresholds,
		ChunkSizeBytes:                protocol.DefaultChunkSize,
		SmallFileThresholdBytes:       DefaultSmallFileThresholdBytes,
		RequestTimeout:                transfer.DefaultRequestTimeout,
		ClipboardAckTimeout:           clipboard.DefaultAckTimeout,
		ClipboardHistoryCapacity:      clipboard.DefaultHistoryCapacity,
		TransferHistoryCapacity:       transfer.DefaultHistoryCapacity,
		MaxConsecutiveFileFailures:    transfer.DefaultMaxConsecutiveFileFailures,
		AutoAcceptWhenTrustedAndClose: false,
	}
}

func runtimePath(dataDir string) string {
	return filepath.Join(dataDir, runtimeFileName)
}

// LoadRuntime reads runtime.json, filling any zero-valued field with its
// package default so a partially hand-edited file still yields usable
// settings.
func LoadRuntime(path string) (RuntimeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("read runtime config: %w", err)
	}

	cfg := DefaultRuntimeConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("parse runtime config: %w", err)
	}
	return cfg.withDefaults(), nil
}

// SaveRuntime marshals and writes runtime.json.
func SaveRuntime(path string, cfg RuntimeConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runtime config: %w", err)
	}
	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}
	return nil
}

// LoadOrCreateRuntime mirrors LoadOrCreate for the runtime tuning file.
func LoadOrCreateRuntime(dataDir string) (RuntimeConfig, string, error) {
	if err := EnsureDataDirectories(dataDir); err != nil {
		return RuntimeConfig{}, "", err
	}

	path := runtimePath(dataDir)
	cfg, err := LoadRuntime(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return RuntimeConfig{}, "", err
		}
		cfg = DefaultRuntimeConfig()
		if err := SaveRuntime(path, cfg); err != nil {
			return RuntimeConfig{}, "", err
		}
		return cfg, path, nil
	}
	return cfg, path, nil
}

// withDefaults fills any zero-valued tunable with its package default,
// the same normalize-on-load idiom normalizeDefaults uses for DeviceConfig.
func (c RuntimeConfig) withDefaults() RuntimeConfig {
	out := c
	defaults := DefaultRuntimeConfig()

	if out.Thresholds == (distance.Thresholds{}) {
		out.Thresholds = defaults.Thresholds
	}
	if out.ChunkSizeBytes == 0 {
		out.ChunkSizeBytes = defaults.ChunkSizeBytes
	}
	if out.SmallFileThresholdBytes == 0 {
		out.SmallFileThresholdBytes = defaults.SmallFileThresholdBytes
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = defaults.RequestTimeout
	}
	if out.ClipboardAckTimeout == 0 {
		out.ClipboardAckTimeout = defaults.ClipboardAckTimeout
	}
	if out.ClipboardHistoryCapacity == 0 {
		out.ClipboardHistoryCapacity = defaults.ClipboardHistoryCapacity
	}
	if out.TransferHistoryCapacity == 0 {
		out.TransferHistoryCapacity = defaults.TransferHistoryCapacity
	}
	if out.MaxConsecutiveFileFailures == 0 {
		out.MaxConsecutiveFileFailures = defaults.MaxConsecutiveFileFailures
	}
	return out
}
