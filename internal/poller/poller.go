package poller

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"qhse_dashboard/internal/config"
	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/retry"
	"qhse_dashboard/internal/schema"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrSuperseded is returned by Refetch when a newer fetch was issued while
// this one was in flight. Its result is discarded.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// Fetcher returns the raw sheet values, first row being the headers.
type Fetcher interface {
	FetchRows(ctx context.Context) ([][]string, error)
}

type FetcherFunc func(ctx context.Context) ([][]string, error)

func (f FetcherFunc) FetchRows(ctx context.Context) ([][]string, error) {
	return f(ctx)
}

// State is what the dashboard consumes. Data is replaced wholesale on every
// successful fetch and must not be modified by readers.
type State struct {
	Data            []project.Record    `json:"data"`
	Diagnostics     project.Diagnostics `json:"diagnostics"`
	Loading         bool                `json:"loading"`
	Error           string              `json:"error,omitempty"`
	LastUpdated     time.Time           `json:"lastUpdated,omitzero"`
	DataLastChanged time.Time           `json:"dataLastChanged,omitzero"`
	FetchID         string              `json:"fetchId,omitempty"`
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithRetry(c retry.Config) Option {
	return func(p *Poller) { p.retry = c }
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithOnUpdate registers a callback run after every successful fetch that
// was not superseded. It runs on the fetching goroutine; calls never overlap.
func WithOnUpdate(fn func(State)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

type Poller struct {
	fetcher  Fetcher
	schema   *schema.Schema
	interval time.Duration
	retry    retry.Config
	now      func() time.Time
	onUpdate func(State)

	seq      atomic.Uint64
	updateMu sync.Mutex

	mu       sync.RWMutex
	state    State
	hash     [sha256.Size]byte
	hasHash  bool
	inFlight int
}

func New(fetcher Fetcher, s *schema.Schema, opts ...Option) *Poller {
	if s == nil {
		s = schema.Default()
	}
	p := &Poller{
		fetcher:  fetcher,
		schema:   s,
		interval: config.DefaultPollInterval,
		retry:    config.DefaultResilienceConfig.SheetFetch,
		now:      time.Now,
		state: State{
			Data: []project.Record{},
			Diagnostics: project.Diagnostics{
				UnknownHeaders:      []string{},
				DuplicateProjectNos: map[string]int{},
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches immediately and then once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", p.interval).
		Msg("Starting sheet poller. Fetching immediately and then on every tick...")

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Sheet poller stopped")
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	_, err := p.Refetch(ctx)
	if err != nil && ctx.Err() == nil && !errors.Is(err, ErrSuperseded) {
		log.Warn().Err(err).Msg("Scheduled fetch failed; keeping previous data")
	}
}

// Refetch fetches now and returns the resulting state. A failed fetch keeps
// the previous data and records the error in the state. A caller that gives
// up before the fetch completes leaves the state and in-flight fetches alone.
func (p *Poller) Refetch(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return p.Snapshot(), err
	}
	token := p.seq.Add(1)
	p.begin()

	started := time.Now()
	values, err := retry.WithRetry(ctx, p.retry, p.fetcher.FetchRows)

	var (
		records []project.Record
		diag    project.Diagnostics
		sum     [sha256.Size]byte
	)
	if err == nil {
		records, diag = project.NormalizeValues(p.schema, values)
		sum = hashValues(values)
	}

	p.mu.Lock()
	p.inFlight--
	p.state.Loading = p.inFlight > 0

	if err != nil && ctx.Err() != nil {
		// Hand the lead back to the fetch we displaced, if nothing newer came.
		p.seq.CompareAndSwap(token, token-1)
		snapshot := p.snapshotLocked()
		p.mu.Unlock()
		log.Debug().
			Uint64("token", token).
			Err(err).
			Msg("Fetch abandoned by caller")
		return snapshot, err
	}

	if token != p.seq.Load() {
		snapshot := p.snapshotLocked()
		p.mu.Unlock()
		log.Debug().
			Uint64("token", token).
			Msg("Dropping result of superseded fetch")
		return snapshot, ErrSuperseded
	}

	if err != nil {
		p.state.Error = err.Error()
		snapshot := p.snapshotLocked()
		p.mu.Unlock()
		return snapshot, err
	}

	now := p.now()
	changed := !p.hasHash || sum != p.hash
	p.state.Data = records
	p.state.Diagnostics = diag
	p.state.Error = ""
	p.state.LastUpdated = now
	p.state.FetchID = uuid.NewString()
	if changed {
		p.state.DataLastChanged = now
		p.hash = sum
		p.hasHash = true
	}
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	log.Info().
		Str("fetch_id", snapshot.FetchID).
		Int("records", len(records)).
		Int("valid_records", diag.ValidRecords).
		Bool("changed", changed).
		Dur("took", time.Since(started)).
		Msg("Fetched sheet data")

	if p.onUpdate != nil {
		p.updateMu.Lock()
		p.onUpdate(snapshot)
		p.updateMu.Unlock()
	}
	return snapshot, nil
}

func (p *Poller) begin() {
	p.mu.Lock()
	p.inFlight++
	p.state.Loading = true
	p.mu.Unlock()
}

func (p *Poller) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() State {
	s := p.state
	s.Data = p.state.Data[:len(p.state.Data):len(p.state.Data)]
	return s
}

func hashValues(values [][]string) [sha256.Size]byte {
	data, err := json.Marshal(values)
	if err != nil {
		// [][]string always marshals
		panic(err)
	}
	return sha256.Sum256(data)
}
