package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// NewSource creates an audio source for the configured backend.
// BackendAuto picks the cmd backend when its capture command exists,
// falling back to mock.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBackend(cfg.RecordCmd, defaultRecordCmd())
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendCmd:
		return NewCmdSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates an audio sink for the configured backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBackend(cfg.PlayCmd, defaultPlayCmd())
	}

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendCmd:
		return NewCmdSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBackend returns BackendCmd when the external tool is on PATH.
func detectBackend(override, fallback string) Backend {
	name := override
	if name == "" {
		name = fallback
	}
	if _, err := exec.LookPath(name); err == nil {
		return BackendCmd
	}
	return BackendMock
}
