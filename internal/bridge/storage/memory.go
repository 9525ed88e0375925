package storage

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

var (
	_ core.ShadowStore  = (*MemoryShadows)(nil)
	_ core.AccountStore = (*MemoryAccounts)(nil)
)

func shadowKey(username, endpointID string) string {
	return username + "/" + endpointID
}

// MemoryShadows keeps shadows in process memory.
type MemoryShadows struct {
	mu      sync.RWMutex
	shadows map[string]*model.Shadow
}

func NewMemoryShadows() *MemoryShadows {
	return &MemoryShadows{shadows: make(map[string]*model.Shadow)}
}

// Put stores a copy of shadow, replacing any existing one.
func (m *MemoryShadows) Put(_ context.Context, shadow *model.Shadow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shadows[shadowKey(shadow.Username, shadow.EndpointID)] = cloneShadow(shadow)
	return nil
}

func (m *MemoryShadows) Find(_ context.Context, username, endpointID string) (*model.Shadow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shadows[shadowKey(username, endpointID)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneShadow(s), nil
}

func (m *MemoryShadows) MergeState(_ context.Context, username, endpointID string, patch model.StatePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shadows[shadowKey(username, endpointID)]
	if !ok {
		return core.ErrNotFound
	}
	s.State = patch.Apply(s.State)
	return nil
}

func cloneShadow(s *model.Shadow) *model.Shadow {
	cp := *s
	cp.Capabilities = slices.Clone(s.Capabilities)
	cp.DisplayCategories = slices.Clone(s.DisplayCategories)
	cp.State = maps.Clone(s.State)
	cp.Attributes = maps.Clone(s.Attributes)
	if cp.State == nil {
		cp.State = map[string]any{}
	}
	return &cp
}

// MemoryAccounts keeps accounts in process memory.
type MemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[string]*model.Account)}
}

func (m *MemoryAccounts) Put(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = cloneAccount(account)
	return nil
}

func (m *MemoryAccounts) Find(_ context.Context, username string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[username]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (m *MemoryAccounts) Unlink(_ context.Context, username, integration string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[username]
	if !ok {
		return core.ErrNotFound
	}
	delete(a.Links, integration)
	return nil
}

func cloneAccount(a *model.Account) *model.Account {
	cp := *a
	cp.Links = maps.Clone(a.Links)
	return &cp
}
