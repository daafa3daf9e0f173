package logging

import (
	"fmt"
	"os"
	"sync"

	"jobscout/internal/config"
	"jobscout/internal/logging/adapters"
)

// Manager manages the logging system initialization and configuration
type Manager struct {
	factory *AdapterFactory
	logger  *MultiLogger
}

// NewManager creates a new logging manager
func NewManager() *Manager {
	return &Manager{
		factory: NewAdapterFactory(),
		logger:  NewMultiLogger(),
	}
}

// Initialize initializes the logging system from configuration
func (m *Manager) Initialize(cfg *config.Config) error {
	m.logger.SetLevel(ParseLogLevel(cfg.Logging.Level))

	enabled := 0
	for _, settings := range cfg.Logging.Adapters {
		if !settings.Enabled {
			continue
		}
		adapter, err := m.factory.CreateAdapter(AdapterConfig{
			Name:    settings.Name,
			Type:    settings.Type,
			Enabled: settings.Enabled,
			Options: settings.Options,
		})
		if err != nil {
			return fmt.Errorf("failed to create adapter %s: %w", settings.Name, err)
		}
		if err := m.logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add adapter %s: %w", settings.Name, err)
		}
		enabled++
	}

	if enabled > 0 {
		return nil
	}

	// No adapters configured: plain stdout (or stderr) in the configured format
	if cfg.Logging.Output == "stderr" {
		return m.logger.AddAdapter(adapters.NewWriterAdapter("stderr", os.Stderr, adapters.StdoutConfig{
			Format: cfg.Logging.Format,
		}))
	}
	return m.logger.AddAdapter(adapters.NewStdoutAdapter("stdout", adapters.StdoutConfig{
		Format: cfg.Logging.Format,
	}))
}

// GetLogger returns the initialized logger
func (m *Manager) GetLogger() Logger {
	return m.logger
}

// Health reports unhealthy adapters by name
func (m *Manager) Health() map[string]error {
	return m.logger.Health()
}

// Close closes the logging system
func (m *Manager) Close() error {
	if m.logger != nil {
		return m.logger.Close()
	}
	return nil
}

var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// InitializeLogging initializes the global logging system
func InitializeLogging(cfg *config.Config) error {
	manager := NewManager()
	if err := manager.Initialize(cfg); err != nil {
		return err
	}

	globalMu.Lock()
	globalManager = manager
	globalMu.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger, creating a JSON stdout logger on first use
func GetGlobalLogger() Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		manager := NewManager()
		_ = manager.logger.AddAdapter(adapters.NewStdoutAdapter("fallback_stdout", adapters.StdoutConfig{Format: "json"}))
		globalManager = manager
	}
	return globalManager.GetLogger()
}

// GlobalHealth reports unhealthy adapters of the global logger
func GlobalHealth() map[string]error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		return nil
	}
	return globalManager.Health()
}

// CloseLogging closes the global logging system
func CloseLogging() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}

// LogWithRequestID creates a logger with request ID context
func LogWithRequestID(requestID string) Logger {
	return GetGlobalLogger().WithField("request_id", requestID)
}

// LogWithRunID creates a logger scoped to one discovery run
func LogWithRunID(runID string) Logger {
	return GetGlobalLogger().WithField("run_id", runID)
}

func Debug(message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Debug(message, fields...)
}

func Info(message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Info(message, fields...)
}

func Warn(message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Warn(message, fields...)
}

func Error(message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Error(message, fields...)
}

func Fatal(message string, fields ...map[string]interface{}) {
	GetGlobalLogger().Fatal(message, fields...)
}

// NewNopLogger returns a logger with no adapters, for tests and library callers
func NewNopLogger() Logger {
	l := NewMultiLogger()
	l.SetLevel(FatalLevel + 1)
	return l
}
