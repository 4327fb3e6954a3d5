// Package crawl implements the pagination engine: it walks a target's
// pages with one of three scheduling strategies, hands mapped records
// to a per-page callback and stops when the data runs out, repeats
// itself or stops mapping.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apiharvest/apiharvest/internal/extract"
	"github.com/apiharvest/apiharvest/internal/httpx"
	"github.com/apiharvest/apiharvest/internal/metrics"
	"github.com/apiharvest/apiharvest/internal/target"
	"github.com/apiharvest/apiharvest/internal/template"
)

// Fetcher performs one fully templated request and returns the decoded
// body. Implementations retry internally; the only error a caller sees
// is the context's.
type Fetcher interface {
	Send(ctx context.Context, spec httpx.RequestSpec) (any, error)
}

// Callback receives every page that reaches Data or Empty, in whatever
// order the strategy delivers them. Returning ErrStopCrawl ends the
// session gracefully; any other error ends it with a callback_error
// outcome.
type Callback func(page int, rows []extract.Row) error

// Strategy selects how pages are scheduled.
type Strategy string

const (
	StrategyAuto       Strategy = "auto"
	StrategySequential Strategy = "sequential"
	StrategyBatch      Strategy = "batch"
	StrategyStreaming  Strategy = "streaming"
)

// ParseStrategy normalizes a strategy name from config.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "sequential", "serial":
		return StrategySequential, nil
	case "batch", "parallel":
		return StrategyBatch, nil
	case "streaming", "stream":
		return StrategyStreaming, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// autoStrategy picks streaming for flat lists and sequential paging
// for detail-mode targets, whose per-record requests already saturate
// the detail worker pool.
func autoStrategy(mode target.Mode) Strategy {
	if mode == target.ModeDetail {
		return StrategySequential
	}
	return StrategyStreaming
}

// Options configures an Engine.
type Options struct {
	Strategy       Strategy
	Workers        int // page fetch pool for batch and streaming
	DetailWorkers  int // per-page detail request pool
	BatchSize      int // batch window; 0 means Workers
	StartPage      int
	PageSize       int // fallback when the target does not set one
	EmptyPageLimit int // consecutive empty pages before end_of_data

	Metrics  *metrics.Metrics
	Events   EventSink
	Progress Progress
	Logger   *slog.Logger
}

// Engine crawls one target per Run call.
type Engine struct {
	fetcher Fetcher
	opts    Options
}

func New(fetcher Fetcher, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.DetailWorkers <= 0 {
		opts.DetailWorkers = opts.Workers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = opts.Workers
	}
	if opts.StartPage <= 0 {
		opts.StartPage = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.EmptyPageLimit <= 0 {
		opts.EmptyPageLimit = 3
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	if opts.Progress == nil {
		opts.Progress = NopProgress{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{fetcher: fetcher, opts: opts}
}

// Result summarizes a finished session.
type Result struct {
	SessionID string
	Target    string
	Reason    StopReason
	Pages     int // pages fetched
	DataPages int // pages delivered with records
	Records   int // rows handed to the callback
	LastPage  int // page the stop policy fired on
	Duration  time.Duration
}

// Run crawls tgt until the stop policy fires or ctx ends. The returned
// error is non-nil only when the context ended the session early; every
// policy-driven stop is a normal result.
func (e *Engine) Run(ctx context.Context, tgt *target.Target, callback Callback) (*Result, error) {
	strategy := e.opts.Strategy
	if strategy == StrategyAuto {
		strategy = autoStrategy(tgt.Mode)
	}

	r := &run{
		engine:    e,
		target:    tgt,
		callback:  callback,
		session:   newSession(e.opts.StartPage),
		sessionID: uuid.NewString(),
		started:   time.Now(),
	}

	e.opts.Logger.Info("Crawl session starting",
		"session", r.sessionID,
		"target", tgt.ID,
		"strategy", string(strategy),
		"start_page", e.opts.StartPage)

	var err error
	switch strategy {
	case StrategySequential:
		err = r.sequential(ctx)
	case StrategyBatch:
		err = r.batch(ctx)
	case StrategyStreaming:
		err = r.streaming(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	reason, lastPage := r.session.stopState()
	result := &Result{
		SessionID: r.sessionID,
		Target:    tgt.ID,
		Reason:    reason,
		Pages:     int(r.pages.Load()),
		DataPages: int(r.dataPages.Load()),
		Records:   int(r.records.Load()),
		LastPage:  lastPage,
		Duration:  time.Since(r.started),
	}

	r.progress(lastPage, string(reason))
	e.opts.Logger.Info("Crawl session finished",
		"session", r.sessionID,
		"target", tgt.ID,
		"reason", string(reason),
		"pages", result.Pages,
		"records", result.Records,
		"duration", result.Duration)

	return result, err
}

// run is the per-session state shared by the strategy drivers.
type run struct {
	engine    *Engine
	target    *target.Target
	callback  Callback
	session   *session
	sessionID string
	started   time.Time

	pages     atomic.Int64
	dataPages atomic.Int64
	records   atomic.Int64
}

// sequential keeps one request in flight: fetch, deliver, evaluate,
// strictly in page order.
func (r *run) sequential(ctx context.Context) error {
	for {
		page, ok := r.session.claim()
		if !ok {
			return nil
		}
		p, err := r.fetchPage(ctx, page)
		if err != nil {
			r.stop(StopCanceled, page)
			return err
		}
		if !r.deliver(p) {
			return nil
		}
	}
}

// batch fetches contiguous windows of BatchSize pages concurrently,
// fires the window's callbacks in ascending page order, then evaluates
// the stop policy across the window, also ascending, so the highest
// data page ends up as the duplicate-check snapshot.
func (r *run) batch(ctx context.Context) error {
	for {
		numbers := make([]int, 0, r.engine.opts.BatchSize)
		for range r.engine.opts.BatchSize {
			n, ok := r.session.claim()
			if !ok {
				break
			}
			numbers = append(numbers, n)
		}
		if len(numbers) == 0 {
			return nil
		}

		results := make([]*Page, len(numbers))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.engine.opts.Workers)
		for i, n := range numbers {
			g.Go(func() error {
				p, err := r.fetchPage(gctx, n)
				if err != nil {
					return err
				}
				results[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			r.stop(StopCanceled, numbers[0])
			return err
		}

		// Callbacks first. A mapping failure suppresses its own
		// callback and every later one in the window.
		delivered := 0
		for _, p := range results {
			if p.Outcome == OutcomeMappingFailure {
				r.engine.opts.Metrics.IncPage(r.target.ID, p.Outcome.String())
				r.stop(StopMappingFailure, p.Number)
				break
			}
			if !r.deliverPage(p) {
				break
			}
			delivered++
		}

		if !r.session.stopped() {
			for _, p := range results[:delivered] {
				if !r.evaluatePage(p) {
					break
				}
			}
		}
	}
}

// streaming keeps Workers goroutines pulling page numbers from the
// shared cursor. Completion order is not guaranteed; workers check the
// stop flag before claiming, so at most Workers-1 pages are fetched
// after a stop, and none of them is delivered.
func (r *run) streaming(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range r.engine.opts.Workers {
		g.Go(func() error {
			for {
				page, ok := r.session.claim()
				if !ok {
					return nil
				}
				p, err := r.fetchPage(gctx, page)
				if err != nil {
					r.stop(StopCanceled, page)
					return err
				}
				if r.session.stopped() {
					return nil
				}
				if !r.deliver(p) {
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// fetchPage performs the list request for one page and classifies the
// result. Detail-mode targets expand every record before the page is
// returned.
func (r *run) fetchPage(ctx context.Context, page int) (*Page, error) {
	tgt := r.target

	body, err := r.engine.fetcher.Send(ctx, r.listRequest(page))
	if err != nil {
		return nil, err
	}
	r.pages.Add(1)

	items := extract.Items(body, tgt.List.ItemsPath)
	records, failed := extract.MapRecords(items, tgt.List.Fields)
	if failed {
		return &Page{Number: page, Items: items, Outcome: OutcomeMappingFailure}, nil
	}
	if len(records) == 0 {
		return &Page{Number: page, Outcome: OutcomeEmpty}, nil
	}

	if tgt.Mode == target.ModeDetail {
		records, err = r.expandDetails(ctx, page, items, records)
		if err != nil {
			return nil, err
		}
	}

	return &Page{Number: page, Items: items, Records: records, Outcome: OutcomeData}, nil
}

// listRequest instantiates the target's list template for one page.
func (r *run) listRequest(page int) httpx.RequestSpec {
	tgt := r.target
	size := r.pageSize()

	spec := httpx.RequestSpec{
		Method:  tgt.List.Method,
		URL:     template.ExpandPage(tgt.List.URL, page, size),
		Headers: tgt.List.Headers,
		Target:  tgt.ID,
		Phase:   "list",
		Page:    page,
	}
	if len(tgt.List.Query) > 0 {
		if q, ok := template.ForPage(tgt.List.Query, page, size).(map[string]any); ok {
			spec.Query = q
		}
	}
	if tgt.List.Body != nil {
		spec.Body = template.ForPage(tgt.List.Body, page, size)
	}
	return spec
}

func (r *run) pageSize() int {
	if r.target.PageSize > 0 {
		return r.target.PageSize
	}
	return r.engine.opts.PageSize
}

// deliver is the per-page path used by sequential and streaming:
// callback first, policy after.
func (r *run) deliver(p *Page) bool {
	if p.Outcome == OutcomeMappingFailure {
		r.engine.opts.Metrics.IncPage(r.target.ID, p.Outcome.String())
		r.stop(StopMappingFailure, p.Number)
		return false
	}
	if !r.deliverPage(p) {
		return false
	}
	return r.evaluatePage(p)
}

// deliverPage fires the callback and bumps the delivery counters. The
// stop policy is not evaluated here.
func (r *run) deliverPage(p *Page) bool {
	if err := r.fireCallback(p); err != nil {
		if errors.Is(err, ErrStopCrawl) {
			r.stop(StopCallback, p.Number)
		} else {
			r.engine.opts.Logger.Error("Page callback failed",
				"session", r.sessionID,
				"target", r.target.ID,
				"page", p.Number,
				"error", err)
			r.stop(StopCallbackError, p.Number)
		}
		return false
	}

	r.engine.opts.Metrics.IncPage(r.target.ID, p.Outcome.String())
	if p.Outcome == OutcomeData {
		r.dataPages.Add(1)
		r.records.Add(int64(len(p.Records)))
		r.engine.opts.Metrics.AddRecords(r.target.ID, len(p.Records))
	}
	r.progress(p.Number, "running")
	return true
}

// evaluatePage applies the stop policy to a delivered page.
func (r *run) evaluatePage(p *Page) bool {
	if p.Outcome == OutcomeData {
		if r.session.markData(p.Records) {
			r.stop(StopDuplicatePage, p.Number)
			return false
		}
		return !r.session.stopped()
	}

	if r.session.markEmpty() >= r.engine.opts.EmptyPageLimit {
		r.stop(StopEndOfData, p.Number)
		return false
	}
	return !r.session.stopped()
}

// fireCallback invokes the callback, converting panics into errors so
// a bad callback cannot take the engine down.
func (r *run) fireCallback(p *Page) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("callback panic: %v", v)
		}
	}()
	return r.callback(p.Number, p.Records)
}

// stop latches the stop reason. Only the first caller emits the stop
// event and metrics; racing workers fall through silently.
func (r *run) stop(reason StopReason, page int) {
	if !r.session.requestStop(reason, page) {
		return
	}
	r.engine.opts.Metrics.IncStop(string(reason))
	r.emitStopEvent(reason, page)
	r.engine.opts.Logger.Info("Crawl stop policy fired",
		"session", r.sessionID,
		"target", r.target.ID,
		"reason", string(reason),
		"page", page)
}

func (r *run) emitStopEvent(reason StopReason, page int) {
	sink := r.engine.opts.Events
	if sink == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	sink.CrawlStopped(StopEvent{
		SessionID: r.sessionID,
		Target:    r.target.ID,
		Reason:    reason,
		Page:      page,
		Pages:     int(r.pages.Load()),
		Records:   int(r.records.Load()),
	})
}

func (r *run) progress(page int, state string) {
	r.engine.opts.Progress.Update(r.target.ID, page, int(r.records.Load()), state)
}
