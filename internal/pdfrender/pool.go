package pdfrender

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

const (
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

var ErrPoolClosed = errors.New("printer pool closed")

// Pool spreads prints over up to size printers, each with its own browser.
// Printers are created lazily on first acquire.
type Pool struct {
	size     int
	newFn    func() Printer
	printers []Printer
	sem      chan Printer
	mu       sync.Mutex
	created  int
	closed   bool
}

var _ Printer = (*Pool)(nil)

// NewPool creates a pool of n printers built by newFn.
func NewPool(n int, newFn func() Printer) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		size:     n,
		newFn:    newFn,
		printers: make([]Printer, 0, n),
		sem:      make(chan Printer, n),
	}
}

// Acquire returns an idle printer, creating one while under capacity, and
// blocks otherwise until one is released or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (Printer, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	select {
	case pr := <-p.sem:
		p.mu.Unlock()
		return pr, nil
	default:
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		pr := p.newFn()

		p.mu.Lock()
		p.printers = append(p.printers, pr)
		p.mu.Unlock()
		return pr, nil
	}
	p.mu.Unlock()

	select {
	case pr, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return pr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a printer to the pool.
func (p *Pool) Release(pr Printer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sem <- pr
}

// Print runs one print on a pooled printer.
func (p *Pool) Print(ctx context.Context, html []byte) ([]byte, error) {
	pr, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(pr)
	return pr.Print(ctx, html)
}

// Close releases every printer the pool created.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	for range p.sem {
	}
	printers := p.printers
	p.mu.Unlock()

	var errs []error
	for _, pr := range printers {
		if err := pr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) Size() int {
	return p.size
}

// ResolvePoolSize returns workers when positive, else a GOMAXPROCS-based
// size clamped to [MinPoolSize, MaxPoolSize].
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
