package kvstore

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

type SQLiteConfig struct {
	Path  string `json:"path"`
	Table string `json:"table"`
}

// SQLiteStore keeps the key/value pairs in a single two-column table.
type SQLiteStore struct {
	db     *sql.DB
	logger types.Logger
	config *SQLiteConfig
	state  atomic.Value
}

func NewSQLiteStore(logger types.Logger, params interface{}) (*SQLiteStore, error) {
	config := &SQLiteConfig{
		Path:  "./data/kv.db",
		Table: "kv",
	}

	if params != nil {
		if err := utils.UnmarshalConfig(params, config); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal sqlite store config")
		}
	}

	if dir := filepath.Dir(config.Path); dir != "." && config.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.WrapError(err, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, types.Errorf(types.ErrStoreConnectionFailed, "%v", err)
	}

	// sqlite serialises writers; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + config.Table + ` (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		_ = db.Close()
		return nil, types.Errorf(types.ErrStoreConnectionFailed, "create table: %v", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		config: config,
	}
	s.state.Store(StateStopped)

	return s, nil
}

func (s *SQLiteStore) Type() string {
	return "sqlite"
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM `+s.config.Table+` WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.Errorf(types.ErrStoreOperationFailed, "get %s: %v", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO `+s.config.Table+` (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return types.Errorf(types.ErrStoreOperationFailed, "set %s: %v", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM `+s.config.Table+` WHERE key = ?`, key); err != nil {
		return types.Errorf(types.ErrStoreOperationFailed, "remove %s: %v", key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM ` + s.config.Table + ` ORDER BY key`)
	if err != nil {
		return nil, types.Errorf(types.ErrStoreOperationFailed, "keys: %v", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, types.Errorf(types.ErrStoreOperationFailed, "keys: %v", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServiceIsRunning
	}

	s.logger.Info("SQLite store started", zap.String("path", s.config.Path))
	return nil
}

func (s *SQLiteStore) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServiceIsNotRunning
	}

	if err := s.db.Close(); err != nil {
		return types.WrapError(err, "failed to close sqlite store")
	}

	s.logger.Info("SQLite store stopped gracefully")
	return nil
}

func (s *SQLiteStore) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}
