package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"pktcloud/internal/cloud"
	"pktcloud/internal/config"
	"pktcloud/internal/logging"
	"pktcloud/internal/settings"
	"pktcloud/internal/store"
)

// session is everything one command needs: config, the two stores, the
// cloud client and an opened dialog.
type session struct {
	workspace string
	cfg       *config.Config
	settings  *settings.Store
	packets   *store.Store
	client    *cloud.Client
	dialog    *cloud.Dialog
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

func openSession(ctx context.Context) (*session, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	cfgPath := config.Path(ws)
	if created, err := config.EnsureFile(cfgPath); err != nil {
		logger.Warn("could not write default config", zap.String("path", cfgPath), zap.Error(err))
	} else if created {
		logger.Info("wrote default config", zap.String("path", cfgPath))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(ws, cfg.Logging); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}

	timeout, err := cfg.GetCloudTimeout()
	if err != nil {
		return nil, err
	}

	st, err := settings.Open(cfg.SettingsPath(ws))
	if err != nil {
		return nil, err
	}

	ps, err := store.NewStore(cfg.DatabasePath(ws))
	if err != nil {
		return nil, err
	}

	client, err := cloud.NewClient(cloud.ClientConfig{
		Endpoint:  cfg.Cloud.URL,
		Timeout:   timeout,
		UserAgent: cfg.Cloud.UserAgent,
	})
	if err != nil {
		ps.Close()
		return nil, err
	}

	d := cloud.NewDialog(st, ps, ps)
	if err := d.Open(ctx); err != nil {
		client.Close()
		ps.Close()
		return nil, err
	}

	logger.Debug("session opened",
		zap.String("workspace", ws),
		zap.String("endpoint", client.Endpoint()),
		zap.Duration("timeout", timeout))
	logging.Boot("session opened in %s against %s", ws, client.Endpoint())

	return &session{
		workspace: ws,
		cfg:       cfg,
		settings:  st,
		packets:   ps,
		client:    client,
		dialog:    d,
	}, nil
}

func (s *session) Close() {
	s.dialog.Close()
	s.client.Close()
	if err := s.packets.Close(); err != nil {
		logger.Warn("failed to close packet store", zap.Error(err))
	}
	logging.CloseAll()
}
