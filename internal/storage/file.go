package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "govreminder/pkg/logx"
)

// fileStore keeps the snapshot as a JSON document and deliveries as JSON Lines.
//
// Files:
//   - <path>                         (snapshot, indent 2)
//   - <prefix>.deliveries.jsonl      (append-only)
type fileStore struct {
	log logx.Logger

	mu             sync.Mutex
	snapshotPath   string
	deliveriesPath string
	deliveries     *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := filepath.Dir(cfg.Path)
	base := filepath.Base(cfg.Path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))

	return &fileStore{
		log:            log,
		snapshotPath:   cfg.Path,
		deliveriesPath: prefix + ".deliveries.jsonl",
	}, nil
}

func (s *fileStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	_ = ctx
	b, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.snapshotPath, err)
	}
	return snap, nil
}

func (s *fileStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	_ = ctx
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write next to the target so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(s.snapshotPath), filepath.Base(s.snapshotPath)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.snapshotPath); err != nil {
		cleanup()
		return err
	}
	s.log.Debug("snapshot saved", logx.String("path", s.snapshotPath))
	return nil
}

func (s *fileStore) AppendDelivery(ctx context.Context, d DeliveryRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		f, err := os.OpenFile(s.deliveriesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		s.deliveries = f
	}
	return json.NewEncoder(s.deliveries).Encode(d)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		return nil
	}
	err := s.deliveries.Close()
	s.deliveries = nil
	return err
}
