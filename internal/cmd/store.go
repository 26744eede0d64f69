package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/waypost/waypost/internal/config"
	"github.com/waypost/waypost/internal/core/store"
)

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// storeConfigFromViper builds the store configuration from the CLI's viper
// keys, for paths that bypass the layered config loader.
func storeConfigFromViper() config.StoreConfig {
	return config.StoreConfig{
		Driver:    viper.GetString("store.driver"),
		Path:      viper.GetString("store.path"),
		URL:       viper.GetString("store.url"),
		AuthToken: viper.GetString("store.auth_token"),
	}
}
