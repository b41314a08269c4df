// Package directory maps string tags to event buses so that independent
// subsystems can share a bus by agreeing on a tag, or stay isolated by using
// different ones.
//
// Each tag maps to exactly one bus, created on first use and kept until the
// directory is shut down. The empty tag names the default bus.
package directory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/stickybus/internal/event"
)

// DefaultName is the name given to the bus of the empty tag.
const DefaultName = "default"

// ErrClosed is returned by Obtain after Shutdown.
var ErrClosed = errors.New("directory is closed")

// Factory creates the bus for a tag. It is called at most once per tag,
// with the directory lock held.
type Factory func(tag string) *event.Bus

// NewFactory returns a Factory that creates buses with opts, named after
// their tag.
func NewFactory(opts ...event.Option) Factory {
	return func(tag string) *event.Bus {
		name := tag
		if name == "" {
			name = DefaultName
		}
		return event.New(append(slices.Clone(opts), event.WithName(name))...)
	}
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// Directory is a thread-safe, lazily populated mapping from tag to bus.
type Directory struct {
	factory Factory
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	buses  map[string]*event.Bus
	closed bool
}

// New creates a directory whose buses are built by factory.
// A nil factory uses NewFactory().
func New(factory Factory, opts ...Option) *Directory {
	if factory == nil {
		factory = NewFactory()
	}
	d := &Directory{
		factory: factory,
		logger:  zap.NewNop().Sugar(),
		buses:   make(map[string]*event.Bus),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("directory")
	return d
}

// Obtain returns the bus for tag, creating it on first use.
// The empty tag returns the default bus.
func (d *Directory) Obtain(tag string) (*event.Bus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if b, ok := d.buses[tag]; ok {
		return b, nil
	}

	b := d.factory(tag)
	if b == nil {
		return nil, fmt.Errorf("factory returned no bus for tag %q", tag)
	}
	d.buses[tag] = b
	d.logger.Debugw("bus created", "tag", tag, "bus", b.Name())
	return b, nil
}

// Default returns the default bus. It is Obtain("").
func (d *Directory) Default() (*event.Bus, error) {
	return d.Obtain("")
}

// Lookup returns the bus for tag without creating it.
func (d *Directory) Lookup(tag string) (*event.Bus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buses[tag]
	return b, ok
}

// Tags returns the non-empty tags that have a bus, sorted.
func (d *Directory) Tags() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	tags := make([]string, 0, len(d.buses))
	for tag := range d.buses {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	slices.Sort(tags)
	return tags
}

// Len returns the number of buses, the default bus included.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buses)
}

// Shutdown shuts down every bus concurrently and rejects further Obtain
// calls. It returns the errors of the buses that did not drain in time.
func (d *Directory) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	buses := make([]*event.Bus, 0, len(d.buses))
	for _, b := range d.buses {
		buses = append(buses, b)
	}
	d.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, b := range buses {
		g.Go(func() error {
			if err := b.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	d.logger.Debugw("directory shut down", "buses", len(buses))
	return errors.Join(errs...)
}

var defaultDirectory = sync.OnceValue(func() *Directory {
	return New(nil)
})

// Default returns the process-wide directory.
func Default() *Directory {
	return defaultDirectory()
}
