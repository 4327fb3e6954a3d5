package cmd

import (
	"log/slog"

	"github.com/apiharvest/apiharvest/internal/crawl"
	"github.com/apiharvest/apiharvest/internal/httpx"
)

// logObserver traces HTTP attempts and session stop events through the
// structured logger. It backs both the client's Observer and the
// engine's EventSink.
type logObserver struct {
	logger *slog.Logger
}

func newLogObserver(logger *slog.Logger) *logObserver {
	return &logObserver{logger: logger}
}

// HTTPAttempt logs one attempt record. Successes are debug-level noise;
// failures are already logged by the client before it retries.
func (o *logObserver) HTTPAttempt(rec httpx.AttemptRecord) {
	if rec.Result != httpx.ResultOK {
		return
	}
	o.logger.Debug("Request succeeded",
		"target", rec.Target,
		"phase", rec.Phase,
		"page", rec.Page,
		"method", rec.Method,
		"url", rec.URL,
		"attempt", rec.Attempt,
		"status", rec.Status,
		"duration", rec.Duration.String())
}

// CrawlStopped logs the stop-policy trigger with the session counters
// at the moment it fired.
func (o *logObserver) CrawlStopped(ev crawl.StopEvent) {
	o.logger.Info("Crawl stopped",
		"session", ev.SessionID,
		"target", ev.Target,
		"reason", string(ev.Reason),
		"page", ev.Page,
		"pages", ev.Pages,
		"records", ev.Records)
}
