// Package vipsutil owns the libvips lifecycle. libvips must be started once
// per process and shut down on exit; both the HEIC converter and the
// thumbnail engine check Available before touching it.
package vipsutil

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"photovault/internal/logging"
)

var (
	initMutex   sync.Mutex
	initialized bool
	available   bool
)

// Init starts libvips with conservative memory settings and routes its log
// output through our leveled logger. Safe to call more than once.
func Init() {
	initMutex.Lock()
	defer initMutex.Unlock()

	if initialized {
		return
	}

	// Configure vips logging before Startup so it respects LOG_LEVEL.
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level >= vips.LogLevelError:
			logging.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
	})

	initialized = true
	available = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// Shutdown releases libvips resources.
func Shutdown() {
	initMutex.Lock()
	defer initMutex.Unlock()

	if initialized {
		vips.Shutdown()
		initialized = false
		available = false
		logging.Info("libvips shutdown complete")
	}
}

// Available reports whether Init has run and libvips can be used.
func Available() bool {
	initMutex.Lock()
	defer initMutex.Unlock()
	return available
}
