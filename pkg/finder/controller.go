package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Sternrassler/image-finder/pkg/logging"
	"github.com/Sternrassler/image-finder/pkg/pexels"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the controller.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finder_fetches_total",
		Help: "Completed page fetches by outcome",
	}, []string{"outcome"})

	fetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finder_fetches_in_flight",
		Help: "Page fetches currently outstanding, including superseded ones",
	})
)

// Fetch outcomes recorded in finder_fetches_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
)

// FetchErrorMessage is the notification shown for any failed fetch.
const FetchErrorMessage = "Error while fetching images"

var (
	// ErrBusy is returned by LoadMore while a fetch is outstanding.
	ErrBusy = errors.New("fetch in progress")

	// ErrNoResults is returned by LoadMore when there is nothing to continue.
	ErrNoResults = errors.New("no results to continue")

	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller closed")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("controller already started")
)

// Searcher fetches one page of photos. *pexels.Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (*pexels.SearchResult, error)
}

// Notifier receives fire-and-forget user-facing messages.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) { f(message) }

// Config holds controller settings.
type Config struct {
	// DefaultQuery is searched by Start.
	DefaultQuery string
}

// DefaultConfig returns the settings the finder starts with.
func DefaultConfig() Config {
	return Config{
		DefaultQuery: "nature",
	}
}

// Controller owns the search state and issues page fetches.
type Controller struct {
	searcher Searcher
	notifier Notifier
	config   Config
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	generation  uint64
	started     bool
	closed      bool
	subscribers map[int]func(State)
	nextSubID   int
}

// New creates a controller with page 1 of cfg.DefaultQuery as its initial
// state. No request is made until Start. A nil notifier logs messages instead.
func New(searcher Searcher, notifier Notifier, cfg Config) (*Controller, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	logger := logging.NewLogger("finder")

	if notifier == nil {
		notifier = logNotifier{logger: logger}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		searcher: searcher,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		state: State{
			Query: cfg.DefaultQuery,
			Page:  1,
		},
		subscribers: make(map[int]func(State)),
	}, nil
}

// Start performs the initial fetch for the default query.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true

	c.logger.Info().Str("query", c.state.Query).Msg("Starting with default query")
	c.scheduleLocked()
	return nil
}

// SubmitQuery starts a new search for the trimmed text. Results and page are
// reset before it returns; the fetch for page 1 completes asynchronously.
// A fetch still outstanding for an earlier query is not cancelled, its
// response is discarded when it arrives.
func (c *Controller) SubmitQuery(text string) error {
	query := strings.TrimSpace(text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.started = true

	c.state.Query = query
	c.state.Page = 1
	c.state.Results = nil
	c.state.TotalResults = 0
	c.state.HasMore = false

	c.logger.Debug().Str("query", query).Msg("Query submitted")
	c.scheduleLocked()
	return nil
}

// LoadMore requests the next page of the current query. Its photos are
// appended to the results once they arrive.
func (c *Controller) LoadMore() error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state.Busy:
		c.mu.Unlock()
		return ErrBusy
	case len(c.state.Results) == 0:
		c.mu.Unlock()
		return ErrNoResults
	}

	c.state.Page++

	c.logger.Debug().
		Str("query", c.state.Query).
		Int("page", c.state.Page).
		Msg("Loading more")
	c.scheduleLocked()
	return nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not block.
// Snapshots are delivered outside the lock, so those from concurrent changes
// can arrive out of order: ignore one whose Generation is lower than the last
// seen, or re-read State. The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Wait blocks until every fetch issued so far, including superseded ones,
// has completed. It must not run concurrently with Start, SubmitQuery or
// LoadMore; callers that drive the controller from several goroutines
// should wait on state changes through Subscribe instead.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close discards the state. Outstanding requests are cancelled and their
// completions ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.subscribers = make(map[int]func(State))
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

// scheduleLocked marks the state busy and issues exactly one fetch for the
// current (query, page). It must be called with c.mu held and releases it.
func (c *Controller) scheduleLocked() {
	c.generation++
	c.state.Generation = c.generation
	req := fetchRequest{
		generation: c.generation,
		query:      c.state.Query,
		page:       c.state.Page,
	}
	c.state.Busy = true

	snapshot, subs := c.snapshotLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	publish(snapshot, subs)
	go c.fetchPage(req)
}

type fetchRequest struct {
	generation uint64
	query      string
	page       int
}

// fetchPage runs one search and merges its outcome into the state.
func (c *Controller) fetchPage(req fetchRequest) {
	defer c.wg.Done()

	fetchesInFlight.Inc()
	defer fetchesInFlight.Dec()

	result, err := c.search(req)
	c.complete(req, result, err)
}

// search calls the searcher, turning a panic into an error so the busy flag
// is always released.
func (c *Controller) search(req fetchRequest) (result *pexels.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("searcher panic: %v", r)
		}
	}()
	return c.searcher.Search(c.ctx, req.query, req.page)
}

func (c *Controller) complete(req fetchRequest, result *pexels.SearchResult, err error) {
	c.mu.Lock()

	if req.generation != c.generation {
		c.mu.Unlock()
		fetchesTotal.WithLabelValues(OutcomeStale).Inc()
		c.logger.Debug().
			Str("query", req.query).
			Int("page", req.page).
			Uint64("generation", req.generation).
			Msg("Discarding superseded response")
		return
	}

	if err == nil && result == nil {
		err = pexels.ErrMissingPhotos
	}

	if err != nil {
		c.state.Busy = false
		snapshot, subs := c.snapshotLocked()
		c.mu.Unlock()

		fetchesTotal.WithLabelValues(OutcomeFailure).Inc()
		c.logger.Error().
			Err(err).
			Str("query", req.query).
			Int("page", req.page).
			Str("error_class", string(pexels.ClassOf(err))).
			Msg(FetchErrorMessage)

		c.notifier.Notify(FetchErrorMessage)
		publish(snapshot, subs)
		return
	}

	if req.page == 1 {
		c.state.Results = append([]pexels.Photo(nil), result.Photos...)
	} else {
		c.state.Results = append(c.state.Results, result.Photos...)
	}
	c.state.TotalResults = result.TotalResults
	c.state.HasMore = result.HasNext()
	c.state.Busy = false

	snapshot, subs := c.snapshotLocked()
	c.mu.Unlock()

	fetchesTotal.WithLabelValues(OutcomeSuccess).Inc()
	c.logger.Debug().
		Str("query", req.query).
		Int("page", req.page).
		Int("received", len(result.Photos)).
		Int("results", len(snapshot.Results)).
		Msg("Page merged")

	publish(snapshot, subs)
}

func (c *Controller) snapshotLocked() (State, []func(State)) {
	subs := make([]func(State), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	return c.state.clone(), subs
}

func publish(state State, subs []func(State)) {
	for _, fn := range subs {
		fn(state)
	}
}

// logNotifier is used when no Notifier is supplied.
type logNotifier struct {
	logger zerolog.Logger
}

func (n logNotifier) Notify(message string) {
	n.logger.Warn().Str("notification", message).Msg("User notification")
}
