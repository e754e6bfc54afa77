package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const (
	CounterFileName = "ticketCounter.json"
	TicketsFileName = "ticketsData.json"
)

// FileStore keeps both documents as JSON files in one directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) counterPath() string { return filepath.Join(s.dir, CounterFileName) }
func (s *FileStore) ticketsPath() string { return filepath.Join(s.dir, TicketsFileName) }

func (s *FileStore) Ensure(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	defaults := map[string]string{
		s.counterPath(): emptyCounterJSON,
		s.ticketsPath(): emptyTicketsJSON,
	}
	for path, body := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := writeAtomic(path, []byte(body)); err != nil {
			return fmt.Errorf("initialize %s: %w", filepath.Base(path), err)
		}
		s.logger.Info("initialized store document", zap.String("path", path))
	}
	return nil
}

func (s *FileStore) LoadCounter(ctx context.Context) (int, error) {
	data, err := readOptional(s.counterPath())
	if err != nil {
		return 0, err
	}
	return decodeCounter(data)
}

func (s *FileStore) SaveCounter(ctx context.Context, count int) error {
	data, err := encodeCounter(count)
	if err != nil {
		return err
	}
	return writeAtomic(s.counterPath(), data)
}

func (s *FileStore) LoadTickets(ctx context.Context) (map[string]domain.Ticket, error) {
	data, err := readOptional(s.ticketsPath())
	if err != nil {
		return nil, err
	}
	return decodeTickets(data)
}

func (s *FileStore) SaveTickets(ctx context.Context, tickets map[string]domain.Ticket) error {
	data, err := encodeTickets(tickets)
	if err != nil {
		return err
	}
	return writeAtomic(s.ticketsPath(), data)
}

// Ping verifies the store directory is reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) Close() {}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// writeAtomic replaces path with data so readers see either the old or the
// new document, never a partial one.
// A failed write leaves no temporary file behind.
func writeAtomic(path string, data []byte) (err error) {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
