package target

import "errors"

var (
	// ErrNoTargets is returned when the targets file holds no usable targets
	ErrNoTargets = errors.New("no targets found in configuration")
	// ErrMissingID is returned when a target has no id
	ErrMissingID = errors.New("target id is required")
	// ErrMissingURL is returned when a request spec has no URL
	ErrMissingURL = errors.New("url is required")
	// ErrInvalidURL is returned when a request URL is not http or https
	ErrInvalidURL = errors.New("url must be http or https")
	// ErrNoFields is returned when a request spec maps no output fields
	ErrNoFields = errors.New("at least one field mapping is required")
	// ErrMissingDetail is returned when a detail-mode target has no detail spec
	ErrMissingDetail = errors.New("detail request spec is required in detail mode")
	// ErrInvalidMode is returned for an unknown request mode
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidPageSize is returned when a target page size is negative
	ErrInvalidPageSize = errors.New("page_size cannot be negative")
)
