package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

// Seed is a YAML document of accounts and shadows loaded at startup.
type Seed struct {
	Accounts []*model.Account `yaml:"accounts"`
	Shadows  []*model.Shadow  `yaml:"shadows"`
}

// ShadowWriter is a store that accepts whole shadows.
type ShadowWriter interface {
	Put(ctx context.Context, shadow *model.Shadow) error
}

// AccountWriter is a store that accepts whole accounts.
type AccountWriter interface {
	Put(ctx context.Context, account *model.Account) error
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, s := range seed.Shadows {
		if s == nil || s.Username == "" || s.EndpointID == "" {
			return nil, fmt.Errorf("seed shadow #%d: username and endpointId are required", i)
		}
	}
	for i, a := range seed.Accounts {
		if a == nil || a.Username == "" {
			return nil, fmt.Errorf("seed account #%d: username is required", i)
		}
	}
	return &seed, nil
}

// Apply writes the seed into the given stores. A nil writer is skipped.
func (s *Seed) Apply(ctx context.Context, shadows ShadowWriter, accounts AccountWriter) error {
	if shadows != nil {
		for _, sh := range s.Shadows {
			if err := shadows.Put(ctx, sh); err != nil {
				return fmt.Errorf("failed to seed shadow %s/%s: %w", sh.Username, sh.EndpointID, err)
			}
		}
	}
	if accounts != nil {
		for _, a := range s.Accounts {
			if err := accounts.Put(ctx, a); err != nil {
				return fmt.Errorf("failed to seed account %s: %w", a.Username, err)
			}
		}
	}
	return nil
}
