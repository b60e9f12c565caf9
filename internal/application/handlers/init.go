// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/confighistory/internal/domain/ports"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
)

// StoreOpener opens (and prepares) the snapshot store described by cfg.
type StoreOpener func(ctx context.Context, basePath string, cfg *config.Config) (ports.SnapshotStore, error)

// InitHandler handles history initialization.
type InitHandler struct {
	openStore StoreOpener
}

// NewInitHandler creates a new init handler.
func NewInitHandler(openStore StoreOpener) *InitHandler {
	return &InitHandler{openStore: openStore}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	Backend    string
}

// Handle writes the default config and creates the configured store.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("confhist already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if h.openStore != nil {
		store, err := h.openStore(ctx, basePath, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating store: %w", err)
		}
		if err := store.Close(); err != nil {
			return nil, fmt.Errorf("closing store: %w", err)
		}
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(basePath),
		Backend:    cfg.Storage.Backend,
	}, nil
}
