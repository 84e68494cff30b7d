package revenue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"parking-garage-backend/internal/clock"
	"parking-garage-backend/internal/store"
)

const allSectors = "_all"

// Revenue is the amount billed on one calendar day.
type Revenue struct {
	Sector    string          `json:"sector,omitempty"`
	Date      time.Time       `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// Service sums EXIT charges per sector and day, caching results until the
// processor invalidates them.
type Service struct {
	store store.Store
	cache *cache.Cache

	// gens counts invalidations per cache key. A total is only cached if no
	// invalidation of its key happened while it was being computed.
	mu   sync.Mutex
	gens map[string]uint64

	loc      *time.Location
	currency string
	clock    clock.Clock
	log      *slog.Logger
}

// NewService creates a revenue service. Days are calendar days in loc.
func NewService(st store.Store, loc *time.Location, currency string, ttl time.Duration, clk clock.Clock, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    st,
		cache:    cache.New(ttl, 2*ttl),
		gens:     make(map[string]uint64),
		loc:      loc,
		currency: currency,
		clock:    clk,
		log:      log.With("component", "revenue"),
	}
}

// Location returns the timezone that defines a calendar day.
func (s *Service) Location() *time.Location {
	return s.loc
}

// CalculateRevenue returns the sum charged on EXIT events of sector whose
// exit time falls on date. An empty sector sums every sector; an unknown one
// yields zero.
func (s *Service) CalculateRevenue(ctx context.Context, sector string, date time.Time) (Revenue, error) {
	start, end := s.dayBounds(date)
	key := cacheKey(sector, start)

	if v, ok := s.cache.Get(key); ok {
		amount := v.(decimal.Decimal)
		return s.result(sector, start, amount), nil
	}
	gen := s.generation(key)

	events, err := s.store.ExitEvents(ctx, sector, start, end)
	if err != nil {
		return Revenue{}, fmt.Errorf("calculate revenue for %q on %s: %w", sector, start.Format(time.DateOnly), err)
	}

	amount := decimal.Zero
	for _, e := range events {
		if e.AmountCharged.Valid {
			amount = amount.Add(e.AmountCharged.Decimal)
		}
	}
	amount = amount.Round(2)

	s.remember(key, gen, amount)
	s.log.Debug("revenue computed", "sector", sector, "date", start.Format(time.DateOnly), "exits", len(events), "amount", amount.StringFixed(2))
	return s.result(sector, start, amount), nil
}

// Invalidate drops the cached totals that include sector on day.
func (s *Service) Invalidate(sector string, day time.Time) error {
	start, _ := s.dayBounds(day)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{cacheKey(sector, start), cacheKey("", start)} {
		s.gens[key]++
		s.cache.Delete(key)
	}
	return nil
}

func (s *Service) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}

// remember caches amount under key unless key was invalidated after gen was read.
func (s *Service) remember(key string, gen uint64, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return
	}
	s.cache.SetDefault(key, amount)
}

func (s *Service) result(sector string, day time.Time, amount decimal.Decimal) Revenue {
	return Revenue{
		Sector:    sector,
		Date:      day,
		Amount:    amount,
		Currency:  s.currency,
		Timestamp: s.clock.Now(),
	}
}

// dayBounds returns [start, end) in the service timezone of the calendar day
// named by t's own year, month and day.
func (s *Service) dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func cacheKey(sector string, day time.Time) string {
	if sector == "" {
		sector = allSectors
	}
	return sector + "_" + day.Format(time.DateOnly)
}
