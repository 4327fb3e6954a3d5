package crawl

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/apiharvest/apiharvest/internal/extract"
)

// session holds the state the strategy workers share. Each cell has
// its own lock so workers only contend on the cell they touch, and no
// lock is ever held across an HTTP call.
type session struct {
	cursorMu sync.Mutex
	next     int

	snapMu   sync.Mutex
	snapshot []extract.Row // records of the last data page

	emptyMu sync.Mutex
	empties int // consecutive empty pages

	stopMu   sync.Mutex
	stopFlag atomic.Bool
	reason   StopReason
	lastPage int
}

func newSession(startPage int) *session {
	return &session{next: startPage}
}

// claim hands out the next page number. ok is false once the session
// has stopped, so workers never claim past a stop.
func (s *session) claim() (page int, ok bool) {
	if s.stopFlag.Load() {
		return 0, false
	}
	s.cursorMu.Lock()
	page = s.next
	s.next++
	s.cursorMu.Unlock()
	return page, true
}

// markData installs records as the last-data-page snapshot and reports
// whether they repeat the previous snapshot. The consecutive-empty
// counter resets on every data page.
func (s *session) markData(records []extract.Row) (duplicate bool) {
	s.snapMu.Lock()
	duplicate = s.snapshot != nil && reflect.DeepEqual(s.snapshot, records)
	s.snapshot = records
	s.snapMu.Unlock()

	s.emptyMu.Lock()
	s.empties = 0
	s.emptyMu.Unlock()
	return duplicate
}

// markEmpty bumps the consecutive-empty counter and returns it.
func (s *session) markEmpty() int {
	s.emptyMu.Lock()
	defer s.emptyMu.Unlock()
	s.empties++
	return s.empties
}

// requestStop latches the first stop reason. It reports whether this
// call won the race; losers must not emit stop events.
func (s *session) requestStop(reason StopReason, page int) bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.stopFlag.Load() {
		return false
	}
	s.reason = reason
	s.lastPage = page
	s.stopFlag.Store(true)
	return true
}

func (s *session) stopped() bool {
	return s.stopFlag.Load()
}

func (s *session) stopState() (StopReason, int) {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.reason, s.lastPage
}
