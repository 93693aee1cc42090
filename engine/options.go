package engine

import (
	"log/slog"
	"time"

	"tellmvcc/pagemanager"
	"tellmvcc/record"
)

// config holds a Store's tunables, built from the defaults plus any
// Options the caller supplies. Mirrors the teacher's own functional-
// options config (mvcc/options.go's defaultConfig + With* pattern).
type config struct {
	pageSize        int
	totalMemory     int
	layout          record.Layout
	columnCapacity  int
	columnDataCap   int
	gcInterval      time.Duration
	logger          *slog.Logger
}

func defaultConfig() config {
	return config{
		pageSize:       pagemanager.DefaultPageSize,
		totalMemory:    0, // unbounded
		layout:         record.LayoutRow,
		columnCapacity: 64,
		columnDataCap:  1 << 16,
		gcInterval:     time.Minute,
		logger:         slog.Default(),
	}
}

// Option configures a Store at construction time.
type Option func(*config)

// WithPageSize sets the byte size of each page the page manager hands out
// to the insert and update logs.
func WithPageSize(n int) Option {
	return func(c *config) { c.pageSize = n }
}

// WithTotalMemory caps the total bytes the page manager may allocate
// across every table sharing this Store; 0 means unbounded.
func WithTotalMemory(n int) Option {
	return func(c *config) { c.totalMemory = n }
}

// WithLayout selects the consolidated MVRecord layout GC compacts chains
// into (spec section 9: a runtime choice, not a compile-time one).
func WithLayout(l record.Layout) Option {
	return func(c *config) { c.layout = l }
}

// WithColumnCapacity sets the number of version slots preallocated per
// key cluster when WithLayout(record.LayoutColumn) is in effect.
func WithColumnCapacity(n int) Option {
	return func(c *config) { c.columnCapacity = n }
}

// WithColumnDataCap sets the variable-length data heap size preallocated
// per key cluster under the column layout.
func WithColumnDataCap(n int) Option {
	return func(c *config) { c.columnDataCap = n }
}

// WithGCInterval sets how often the background GC loop sweeps each table
// when started via Store.StartBackgroundGC.
func WithGCInterval(d time.Duration) Option {
	return func(c *config) { c.gcInterval = d }
}

// WithLogger overrides the structured logger used for lifecycle and GC
// diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
