package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vfproof/keyframer/internal/config"
	"github.com/vfproof/keyframer/internal/storage"
	"github.com/vfproof/keyframer/internal/storage/memory"
	pgstorage "github.com/vfproof/keyframer/internal/storage/postgres"
	sqlitestorage "github.com/vfproof/keyframer/internal/storage/sqlite"
)

func initStorage(log zerolog.Logger) (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg, config.GetDBConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, dbCfg config.DBConfig, log zerolog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		log.Info().Str("host", dbCfg.Host).Msg("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Config:       dbCfg,
			FallbackPath: fallbackSqlitePath(storageCfg.SQLite.Path),
			Logger:       log,
		}), nil

	case "sqlite":
		log.Info().Str("path", storageCfg.SQLite.Path).Msg("SQLite storage backend selected")
		return sqlitestorage.New(storageCfg.SQLite, log), nil

	case "memory", "":
		log.Info().Str("outputDir", storageCfg.Memory.OutputDir).Msg("Memory storage backend selected")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// fallbackSqlitePath puts the Postgres fallback next to the configured
// SQLite file, named for this session.
func fallbackSqlitePath(sqlitePath string) string {
	dir := filepath.Dir(sqlitePath)
	return filepath.Join(dir, fmt.Sprintf("%s_fallback_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
}
