// Package khirlog provides the shared zap logger plumbing for packages
// that log the steps and decisions they make. Each consuming package
// (opt, driver) keeps one Holder
// from New and exposes it through a Logger() function, whose Set lets a
// host wire in its own zap core per-subsystem without the library
// imposing an output format.
package khirlog

import "go.uber.org/zap"

// New returns a holder seeded with a no-op logger. Call Set to replace it.
func New() *Holder {
	return &Holder{logger: zap.NewNop()}
}

// Holder guards a single package-scoped *zap.Logger.
type Holder struct {
	logger *zap.Logger
}

// Get returns the current logger, defaulting to a no-op logger.
func (h *Holder) Get() *zap.Logger {
	if h.logger == nil {
		return zap.NewNop()
	}
	return h.logger
}

// Set installs l as the package's logger. Should be called before any
// compilation work begins; it is not safe to call concurrently with use.
func (h *Holder) Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	h.logger = l
}
