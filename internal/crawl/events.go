package crawl

// StopReason names why a session ended.
type StopReason string

const (
	// StopEndOfData fires after the configured run of consecutive
	// empty pages.
	StopEndOfData StopReason = "end_of_data"
	// StopDuplicatePage fires when a page repeats the previous data
	// page, which means the pagination parameters have no effect.
	StopDuplicatePage StopReason = "duplicate_page"
	// StopMappingFailure fires when a non-empty page maps to nothing.
	StopMappingFailure StopReason = "mapping_failure"
	// StopCallback fires when a callback returns ErrStopCrawl.
	StopCallback StopReason = "callback_stop"
	// StopCallbackError fires when a callback returns any other error
	// or panics.
	StopCallbackError StopReason = "callback_error"
	// StopCanceled fires when the caller's context ends.
	StopCanceled StopReason = "canceled"
)

// StopEvent describes a stop-policy trigger with the session counters
// at the moment it fired.
type StopEvent struct {
	SessionID string
	Target    string
	Reason    StopReason
	Page      int // page the policy fired on
	Pages     int // pages fetched so far
	Records   int // records delivered so far
}

// EventSink receives one event per session stop. Sink failures never
// reach the engine.
type EventSink interface {
	CrawlStopped(StopEvent)
}
