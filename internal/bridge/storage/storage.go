package storage

import (
	"context"
	"fmt"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/pkg/log"
	"github.com/autopeer-io/voicelink/pkg/options"
)

// Stores is the selected persistence for shadows and accounts.
type Stores struct {
	Shadows  core.ShadowStore
	Accounts core.AccountStore

	closers []func() error
}

// Close releases every backend connection.
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open builds the stores selected by opts and applies the seed file, if any.
func Open(ctx context.Context, opts *options.StoreOptions, pgOpts *options.PostgresOptions, s3Opts *options.S3Options) (*Stores, error) {
	stores := &Stores{}

	var pg *Postgres
	postgres := func() (*Postgres, error) {
		if pg != nil {
			return pg, nil
		}
		p, err := OpenPostgres(ctx, pgOpts)
		if err != nil {
			return nil, err
		}
		pg = p
		stores.closers = append(stores.closers, p.Close)
		return pg, nil
	}

	var (
		shadowWriter  ShadowWriter
		accountWriter AccountWriter
	)

	switch opts.Shadows {
	case options.StoreMemory:
		m := NewMemoryShadows()
		stores.Shadows, shadowWriter = m, m
	case options.StorePostgres:
		p, err := postgres()
		if err != nil {
			return nil, err
		}
		stores.Shadows, shadowWriter = p, p
	case options.StoreS3:
		m, err := NewMinIO(s3Opts)
		if err != nil {
			return nil, err
		}
		if err := m.CheckBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to object storage: %w", err)
		}
		stores.Shadows, shadowWriter = m, m
	default:
		return nil, fmt.Errorf("unsupported shadow store %q", opts.Shadows)
	}

	switch opts.Accounts {
	case options.StoreMemory:
		m := NewMemoryAccounts()
		stores.Accounts, accountWriter = m, m
	case options.StorePostgres:
		p, err := postgres()
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		a := PostgresAccounts{Postgres: p}
		stores.Accounts, accountWriter = a, a
	default:
		_ = stores.Close()
		return nil, fmt.Errorf("unsupported account store %q", opts.Accounts)
	}

	if opts.SeedFile != "" {
		seed, err := LoadSeed(opts.SeedFile)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		if err := seed.Apply(ctx, shadowWriter, accountWriter); err != nil {
			_ = stores.Close()
			return nil, err
		}
		log.Info("Seeded stores", "file", opts.SeedFile, "shadows", len(seed.Shadows), "accounts", len(seed.Accounts))
	}

	log.Info("Stores ready", "shadows", opts.Shadows, "accounts", opts.Accounts)
	return stores, nil
}
