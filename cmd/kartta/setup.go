package main

import (
	"context"
	"fmt"

	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/graph"
	"github.com/yairfalse/kartta/intel/gcp"
	"github.com/yairfalse/kartta/policy"
	"github.com/yairfalse/kartta/sync"
	"github.com/yairfalse/kartta/wal"
)

// engine bundles everything a command needs to run a sync
type engine struct {
	cfg    *config.Config
	store  *graph.Store
	wal    *wal.WAL
	syncer *sync.Syncer
}

// setupEngine loads config and wires the store, WAL, policies and syncer
func setupEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store, err := graph.Open(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}

	auditLog, err := wal.Open(cfg.StorageDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open WAL: %w", err)
	}

	var policies *policy.Engine
	if cfg.PolicyDir != "" {
		policies = policy.NewEngine()
		if err := policies.LoadDir(ctx, cfg.PolicyDir); err != nil {
			_ = auditLog.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}

	client, err := gcp.NewClient(ctx)
	if err != nil {
		_ = auditLog.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create GCP client: %w", err)
	}

	return &engine{
		cfg:    cfg,
		store:  store,
		wal:    auditLog,
		syncer: sync.New(client, store, auditLog, policies, cfg.Assets),
	}, nil
}

func (e *engine) Close() {
	_ = e.wal.Close()
	_ = e.store.Close()
}
