package model

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type opener func(Options) (Scorer, error)

// Loader opens the classifier on first use and hands out the same Scorer
// afterwards. A failed load is remembered and returned on every call.
type Loader struct {
	opts Options
	open opener
	log  *zap.Logger

	once   sync.Once
	mu     sync.Mutex
	scorer Scorer
	err    error
}

func NewLoader(opts Options, log *zap.Logger) *Loader {
	return newLoader(opts, openSession, log)
}

func newLoader(opts Options, open opener, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		opts: opts,
		open: open,
		log:  log,
	}
}

func openSession(opts Options) (Scorer, error) {
	s, err := NewSession(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the loaded Scorer, loading it on the first call. Concurrent
// first callers block until that single load finishes.
func (l *Loader) Get() (Scorer, error) {
	l.once.Do(l.load)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scorer, l.err
}

func (l *Loader) load() {
	start := time.Now()
	l.log.Info("loading model", zap.String("path", l.opts.Path))

	scorer, err := l.open(l.opts)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.err = fmt.Errorf("%w: %w", ErrModelLoad, err)
		l.log.Error("model load failed", zap.String("path", l.opts.Path), zap.Error(err))
		return
	}

	l.scorer = scorer
	fields := []zap.Field{
		zap.String("path", l.opts.Path),
		zap.Int("classes", l.opts.Classes),
		zap.Duration("took", time.Since(start)),
	}
	if s, ok := scorer.(*Session); ok {
		fields = append(fields, zap.String("input", s.InputName()), zap.String("output", s.OutputName()))
	}
	l.log.Info("model loaded", fields...)
}

// Close releases the model if it was loaded. Later calls to Get return
// the closed state, not a fresh load.
func (l *Loader) Close() error {
	l.once.Do(func() {
		l.err = fmt.Errorf("%w: loader closed", ErrModelLoad)
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scorer == nil {
		return nil
	}
	err := l.scorer.Close()
	l.scorer = nil
	if l.err == nil {
		l.err = fmt.Errorf("%w: loader closed", ErrModelLoad)
	}
	return err
}
