// Package storage provides the concrete backends behind datastore.Driver and
// the startup logic that picks one of them from configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DrSkyle/bridgestore/pkg/config"
	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/DrSkyle/bridgestore/pkg/logging"
)

// Backend names accepted in BRIDGE_BACKENDS.
const (
	BackendS3       = "s3"
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendLocal    = "local"
	BackendMemory   = "memory"
)

// ErrNoBackend is returned by Open when no candidate could be constructed.
var ErrNoBackend = errors.New("storage: no backend available")

// ProbeFunc tries to build a backend. ok == false means the backend is not
// configured and selection should move on silently.
type ProbeFunc func(ctx context.Context, cfg config.Config, logger *slog.Logger) (b datastore.Backend, ok bool, err error)

// Candidate is one entry of the selection order.
type Candidate struct {
	Name  string
	Probe ProbeFunc
}

// DefaultCandidates returns the built-in probe order.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: BackendS3, Probe: probeS3},
		{Name: BackendDynamoDB, Probe: probeDynamoDB},
		{Name: BackendSQLite, Probe: probeSQLite},
		{Name: BackendLocal, Probe: probeLocal},
	}
}

// Candidates returns the probe order for cfg. cfg.Backends restricts and
// reorders the defaults and may name the memory backend.
func Candidates(cfg config.Config) ([]Candidate, error) {
	if len(cfg.Backends) == 0 {
		return DefaultCandidates(), nil
	}

	known := map[string]Candidate{
		BackendMemory: {Name: BackendMemory, Probe: probeMemory},
	}
	for _, c := range DefaultCandidates() {
		known[c.Name] = c
	}

	out := make([]Candidate, 0, len(cfg.Backends))
	for _, name := range cfg.Backends {
		c, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("storage: unknown backend %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}

// Open selects the first usable backend for cfg and wraps it in a
// datastore.Store.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...datastore.Option) (*datastore.Store, error) {
	candidates, err := Candidates(cfg)
	if err != nil {
		return nil, err
	}
	return Select(ctx, cfg, logger, candidates, opts...)
}

// Select probes candidates in order and returns the first one that builds.
func Select(ctx context.Context, cfg config.Config, logger *slog.Logger, candidates []Candidate, opts ...datastore.Option) (*datastore.Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	var errs []error
	for _, c := range candidates {
		backend, ok, err := c.Probe(ctx, cfg, logger)
		if err != nil {
			logger.Warn("Backend failed to initialize, trying next", "backend", c.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		if !ok {
			logger.Debug("Backend not configured", "backend", c.Name)
			continue
		}

		logger.Info("Using storage backend", "backend", c.Name)
		storeOpts := append([]datastore.Option{
			datastore.WithLogger(logger),
			datastore.WithCompressionLevel(cfg.CompressionLevel),
		}, opts...)
		return datastore.NewStore(c.Name, backend, storeOpts...), nil
	}

	return nil, errors.Join(append([]error{ErrNoBackend}, errs...)...)
}

func probeS3(_ context.Context, cfg config.Config, logger *slog.Logger) (datastore.Backend, bool, error) {
	s, ok := NewS3Store(cfg.AWS, WithLogger(logger), WithVerbose(cfg.Verbose))
	if !ok {
		return nil, false, nil
	}
	return s, true, nil
}

func probeDynamoDB(_ context.Context, cfg config.Config, logger *slog.Logger) (datastore.Backend, bool, error) {
	d, ok := NewDynamoStore(cfg.AWS, WithLogger(logger), WithVerbose(cfg.Verbose))
	if !ok {
		return nil, false, nil
	}
	return d, true, nil
}

func probeSQLite(ctx context.Context, cfg config.Config, logger *slog.Logger) (datastore.Backend, bool, error) {
	s, ok, err := NewSQLiteStore(ctx, cfg.SQLite.Path, WithLogger(logger))
	if err != nil || !ok {
		return nil, ok, err
	}
	return s, true, nil
}

func probeLocal(_ context.Context, cfg config.Config, logger *slog.Logger) (datastore.Backend, bool, error) {
	l, ok := NewLocalStore(cfg.Local.Root, WithLogger(logger))
	if !ok {
		return nil, false, nil
	}
	return l, true, nil
}

func probeMemory(context.Context, config.Config, *slog.Logger) (datastore.Backend, bool, error) {
	return NewMemoryStore(), true, nil
}
