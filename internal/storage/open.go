package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	logx "govreminder/pkg/logx"
)

// Store is the persistence API used by a run.
type Store interface {
	// LoadSnapshot returns ErrNoSnapshot when nothing was saved yet.
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, s Snapshot) error
	AppendDelivery(ctx context.Context, d DeliveryRecord) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	cfg.Path = path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	lock, err := acquire(path + ".lock")
	if err != nil {
		return nil, err
	}

	var st Store
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file":
		st, err = openFile(cfg, log)
	case "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	default:
		err = errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	log.Debug("storage opened", logx.String("driver", cfg.Driver), logx.String("path", path))
	return &lockedStore{Store: st, lock: lock}, nil
}

func acquire(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return lock, nil
}

type lockedStore struct {
	Store
	lock *flock.Flock
}

func (s *lockedStore) Close() error {
	err := s.Store.Close()
	if uerr := s.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
