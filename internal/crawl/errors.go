package crawl

import "errors"

var (
	// ErrStopCrawl is returned by a callback to end the session
	// gracefully after the current page.
	ErrStopCrawl = errors.New("stop crawl requested")

	// ErrUnknownStrategy marks an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown crawl strategy")
)
