// Package data provides daily price-history storage and loading.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stratlab/backtest-backend/internal/series"
)

// Store provides access to historical daily price data
type Store struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	dataDir  string
	cache    map[string][]series.Bar
	metadata map[string]*SymbolMetadata
}

// SymbolMetadata contains metadata about available data for a symbol
type SymbolMetadata struct {
	Symbol    string    `json:"symbol"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	BarCount  int       `json:"barCount"`
}

// barRecord is the on-disk form of a daily bar. Files produced by external
// fetchers may carry extra fields (dividends, splits); they are ignored.
type barRecord struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewStore creates a new data store rooted at dataDir
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	store := &Store{
		logger:   logger,
		dataDir:  dataDir,
		cache:    make(map[string][]series.Bar),
		metadata: make(map[string]*SymbolMetadata),
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := store.loadMetadata(); err != nil {
		logger.Warn("Failed to load metadata", zap.Error(err))
	}

	return store, nil
}

// LoadBars loads the daily bars for a symbol. When no file exists a
// deterministic sample series is generated and cached so backtests stay
// reproducible.
func (s *Store) LoadBars(ctx context.Context, symbol string) ([]series.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[symbol]; ok {
		return cached, nil
	}

	filename := filepath.Join(s.dataDir, symbol+".json")
	raw, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("Generating sample data", zap.String("symbol", symbol))
			bars := generateSampleBars(symbol)
			s.cache[symbol] = bars
			return bars, nil
		}
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var records []barRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to parse data: %w", err)
	}

	bars := make([]series.Bar, 0, len(records))
	for _, rec := range records {
		date, err := time.Parse("2006-01-02", rec.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in %s: %w", rec.Date, filename, err)
		}
		bars = append(bars, series.Bar{
			Date:   series.Day(date),
			Open:   rec.Open,
			High:   rec.High,
			Low:    rec.Low,
			Close:  rec.Close,
			Volume: rec.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	s.cache[symbol] = bars
	return bars, nil
}

// LoadHistory loads a symbol's bars as an indexed price series.
func (s *Store) LoadHistory(ctx context.Context, symbol string) (*series.PriceSeries, error) {
	bars, err := s.LoadBars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return series.NewPriceSeries(bars)
}

// Symbols returns all symbols with stored data.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.metadata))
	for symbol := range s.metadata {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// DataRange returns the available date range for a symbol.
func (s *Store) DataRange(symbol string) (start, end time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if meta, ok := s.metadata[symbol]; ok {
		return meta.StartDate, meta.EndDate, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("no data available for symbol %s", symbol)
}

// SaveBars writes a symbol's daily bars to disk and refreshes the cache and
// metadata index.
func (s *Store) SaveBars(symbol string, bars []series.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]series.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	records := make([]barRecord, len(sorted))
	for i, b := range sorted {
		records[i] = barRecord{
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	filename := filepath.Join(s.dataDir, symbol+".json")
	if err := os.WriteFile(filename, raw, 0644); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}

	s.cache[symbol] = sorted
	if len(sorted) > 0 {
		s.metadata[symbol] = &SymbolMetadata{
			Symbol:    symbol,
			StartDate: sorted[0].Date,
			EndDate:   sorted[len(sorted)-1].Date,
			BarCount:  len(sorted),
		}
	}
	return s.saveMetadata()
}

// ClearCache clears the in-memory cache
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string][]series.Bar)
}

// CacheSize returns the number of cached symbols
func (s *Store) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.cache)
}

// loadMetadata loads the symbol metadata index from disk
func (s *Store) loadMetadata() error {
	filename := filepath.Join(s.dataDir, "metadata.json")

	raw, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var metadata map[string]*SymbolMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return err
	}
	s.metadata = metadata
	return nil
}

// saveMetadata saves the symbol metadata index to disk
func (s *Store) saveMetadata() error {
	filename := filepath.Join(s.dataDir, "metadata.json")

	raw, err := json.MarshalIndent(s.metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, raw, 0644)
}

// generateSampleBars builds two years of weekday bars from a random walk
// seeded by the symbol name, so the same symbol always yields the same data.
func generateSampleBars(symbol string) []series.Bar {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 50.0 + rng.Float64()*150.0
	start := series.Day(time.Now().UTC()).AddDate(-2, 0, 0)

	var bars []series.Bar
	for d := start; len(bars) < 504; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := price
		price *= 1 + (rng.Float64()-0.5)*0.04
		high := math.Max(open, price) * (1 + rng.Float64()*0.01)
		low := math.Min(open, price) * (1 - rng.Float64()*0.01)
		bars = append(bars, series.Bar{
			Date:   d,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(price),
			Volume: math.Floor(rng.Float64() * 1e6),
		})
	}
	return bars
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
