package atlasmap

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for atlasmap and the backends attached to
// its renderers. By default atlasmap produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
//
// Log levels used by atlasmap:
//   - [slog.LevelDebug]: per-tile events (requested, uploaded, dropped duplicate)
//   - [slog.LevelInfo]: lifecycle (rendering initialized, released)
//   - [slog.LevelWarn]: provider failures and stale callbacks
//   - [slog.LevelError]: backend failures
//
// Example:
//
//	atlasmap.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	attachedMu.Lock()
	for _, b := range attached {
		propagateLogger(b, l)
	}
	attachedMu.Unlock()
}

// Logger returns the current logger used by atlasmap.
// Sub-packages call this to share the same logger configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

var (
	attachedMu sync.Mutex
	attached   = make(map[uint64]Backend)
	attachSeq  uint64
)

// attachBackend records b so later SetLogger calls reach it, and hands it
// the current logger.
func attachBackend(b Backend) uint64 {
	attachedMu.Lock()
	attachSeq++
	id := attachSeq
	attached[id] = b
	attachedMu.Unlock()

	propagateLogger(b, Logger())
	return id
}

func detachBackend(id uint64) {
	attachedMu.Lock()
	delete(attached, id)
	attachedMu.Unlock()
}

func propagateLogger(b Backend, l *slog.Logger) {
	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
