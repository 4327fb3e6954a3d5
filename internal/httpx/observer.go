package httpx

import "time"

// Result classes recorded per attempt.
const (
	ResultOK        = "ok"
	ResultTransport = "transport"
	ResultHTTPError = "http_status"
	ResultDecode    = "decode"
	ResultBusiness  = "business"
)

// AttemptRecord describes one HTTP attempt: the request descriptor plus
// how the attempt ended. Delay holds the backoff scheduled after a
// failed attempt and is zero on success.
type AttemptRecord struct {
	Target   string
	Phase    string
	Page     int
	Method   string
	URL      string
	Attempt  int
	Result   string
	Reason   string
	Status   int
	Duration time.Duration
	Delay    time.Duration
}

// Observer receives one record per HTTP attempt. Observer behavior can
// never change control flow: the client swallows panics and ignores
// whatever the implementation does with the record.
type Observer interface {
	HTTPAttempt(AttemptRecord)
}
