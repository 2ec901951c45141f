package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	logx "neurotutor/pkg/logx"
)

// Scheduler owns the rotation state. Ticks are serialized: a Tick called
// while another runs waits for it and then serves the advanced index.
type Scheduler struct {
	opts    Options
	log     logx.Logger
	bus     eventbus.Bus
	catalog *i18n.Catalog
	limiter *rate.Limiter
	now     func() time.Time

	tickMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	last    TickSummary
	hasLast bool
}

func New(opts Options) (*Scheduler, error) {
	switch {
	case opts.Storage == nil:
		return nil, ErrNoStorage
	case opts.Sender == nil:
		return nil, ErrNoSender
	case opts.Sessions == nil || opts.Gate == nil || opts.Resolver == nil:
		return nil, errors.New("rotation: sessions, gate and resolver are required")
	}
	if opts.Bound < 1 {
		return nil, fmt.Errorf("rotation: bound must be >= 1, got %d", opts.Bound)
	}
	if opts.StartIndex == 0 {
		opts.StartIndex = 1
	}
	if opts.StartIndex < 1 || opts.StartIndex > opts.Bound {
		return nil, fmt.Errorf("rotation: start index %d outside 1..%d", opts.StartIndex, opts.Bound)
	}
	if opts.Policy == "" {
		opts.Policy = PolicyStop
	}
	if opts.Policy != PolicyStop && opts.Policy != PolicyWrap {
		return nil, fmt.Errorf("rotation: unknown policy %q", opts.Policy)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = i18n.RU
	}

	s := &Scheduler{
		opts:    opts,
		log:     opts.Log,
		bus:     opts.Bus,
		catalog: opts.Catalog,
		now:     time.Now,
		state:   State{Index: opts.StartIndex, Bound: opts.Bound},
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "rotation"))
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.catalog == nil {
		s.catalog = i18n.Default()
	}
	if opts.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return s, nil
}

// State returns a copy of the rotation counter.
func (s *Scheduler) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// LastSummary returns the summary of the most recent tick.
func (s *Scheduler) LastSummary() (TickSummary, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.last, s.hasLast
}

func (s *Scheduler) Policy() Policy { return s.opts.Policy }

// Tick runs one broadcast pass. Per-user and per-file failures are logged
// and never returned; the counter advances exactly once per pass.
func (s *Scheduler) Tick(ctx context.Context) TickSummary {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.now()
	st := s.State()
	sum := TickSummary{TickID: uuid.NewString(), At: start, Index: st.Index, Next: st}

	if st.Exhausted {
		s.log.Debug("rotation exhausted; tick skipped", logx.Int("bound", st.Bound))
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTickSkipped, Time: start, Data: sum})
		return sum
	}

	users := s.opts.Sessions.ActiveUsers()
	sum.Users = len(users)
	cache := newTickCache(s.opts.Storage, s.opts.FetchTimeout)
	log := s.log.With(logx.String("tick", sum.TickID), logx.Int("index", st.Index))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for _, u := range users {
		u := u
		g.Go(func() error {
			o := s.serve(ctx, log, sum.TickID, st.Index, u, cache)
			mu.Lock()
			sum.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	next := advance(st, s.opts.Policy, cache.maxSections())
	sum.Next = next
	sum.Advanced = true
	sum.Duration = s.now().Sub(start)

	s.stateMu.Lock()
	s.state = next
	s.last, s.hasLast = sum, true
	s.stateMu.Unlock()

	fields := []logx.Field{
		logx.Int("users", sum.Users),
		logx.Int("skipped", sum.Skipped),
		logx.Int("errored", sum.Errored),
		logx.Int("delivered", sum.Delivered),
		logx.Int("failed", sum.Failed),
		logx.Int("next", next.Index),
		logx.Duration("took", sum.Duration),
	}
	if sum.Failed > 0 || sum.Errored > 0 {
		log.Warn("tick finished with failures", fields...)
	} else {
		log.Info("tick finished", fields...)
	}

	s.recordTick(ctx, sum)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeTickDone, Time: s.now(), Data: sum})
	if next.Exhausted {
		log.Info("rotation exhausted", logx.Int("bound", next.Bound))
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeExhausted, Time: s.now(), Data: next})
	}
	return sum
}

func (t *TickSummary) add(o Outcome) {
	switch {
	case o.Skipped:
		t.Skipped++
		return
	case o.Err != nil:
		t.Errored++
	case o.Failed == 0:
		t.Full++
	default:
		t.Partial++
	}
	t.Delivered += o.Delivered
	t.Failed += o.Failed
}

// advance applies policy to the state after a completed pass. sections is
// the largest caption section count read during the pass.
func advance(st State, p Policy, sections int) State {
	switch p {
	case PolicyWrap:
		n := sections
		if n <= 0 {
			n = st.Bound
		}
		st.Index = (st.Index % n) + 1
	default:
		if st.Index >= st.Bound {
			st.Index = st.Bound
			st.Exhausted = true
		} else {
			st.Index++
		}
	}
	return st
}
