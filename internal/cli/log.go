package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Loaded 300 commits (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// logHooks reports session and cache events at debug level.
type logHooks struct {
	logger *log.Logger
}

func newLogHooks(l *log.Logger) *logHooks { return &logHooks{logger: l} }

func (h *logHooks) OnFetchStart(_ context.Context, repo string, limit, skip int) {
	h.logger.Debug("fetch", "repo", repo, "limit", limit, "skip", skip)
}

func (h *logHooks) OnFetchComplete(_ context.Context, repo string, commits int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("fetch failed", "repo", repo, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("fetched", "repo", repo, "commits", commits, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnReconcile(_ context.Context, repo, mode string, nodes int, d time.Duration) {
	h.logger.Debug("reconciled", "repo", repo, "mode", mode, "nodes", nodes, "duration", d.Round(time.Microsecond))
}

func (h *logHooks) OnDragEnd(_ context.Context, repo, nodeID string, moved int) {
	h.logger.Debug("drag end", "repo", repo, "node", nodeID, "moved", moved)
}

func (h *logHooks) OnCacheHit(_ context.Context, backend string, entries int) {
	h.logger.Debug("layout cache hit", "backend", backend, "entries", entries)
}

func (h *logHooks) OnCacheMiss(_ context.Context, backend string) {
	h.logger.Debug("layout cache miss", "backend", backend)
}

func (h *logHooks) OnCacheSave(_ context.Context, backend string, entries int) {
	h.logger.Debug("layout saved", "backend", backend, "entries", entries)
}

func (h *logHooks) OnCacheError(_ context.Context, backend string, err error) {
	h.logger.Warn("layout cache error", "backend", backend, "err", err)
}
