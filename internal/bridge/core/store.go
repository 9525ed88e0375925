package core

import (
	"context"
	"errors"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ShadowStore persists device shadows.
type ShadowStore interface {
	// Find returns the shadow of (username, endpointID) or ErrNotFound.
	Find(ctx context.Context, username, endpointID string) (*model.Shadow, error)

	// MergeState applies patch to the shadow's state.
	MergeState(ctx context.Context, username, endpointID string, patch model.StatePatch) error
}

// AccountStore persists accounts and their integration links.
type AccountStore interface {
	// Find returns the account of username or ErrNotFound.
	Find(ctx context.Context, username string) (*model.Account, error)

	// Unlink removes the named integration link from the account.
	Unlink(ctx context.Context, username, integration string) error
}
