package bridge

import (
	"context"

	"github.com/autopeer-io/voicelink/internal/bridge/server"
	"github.com/autopeer-io/voicelink/internal/bridge/storage"
	"github.com/autopeer-io/voicelink/pkg/log"
)

// Bridge is the main application struct of voicelink.
type Bridge struct {
	serverManager *server.Manager
	stores        *storage.Stores
}

// Run starts every server and blocks until ctx is cancelled or one fails.
func (b *Bridge) Run(ctx context.Context) error {
	log.Info("Starting voicelink bridge...")

	err := b.serverManager.Start(ctx)

	if closeErr := b.stores.Close(); closeErr != nil {
		log.Error(closeErr, "Failed to close stores")
	}
	log.Info("Voicelink bridge stopped")
	return err
}
