package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/operations"
)

var (
	entryPrefix = []byte("offline-queue/")
	sequenceKey = []byte("offline-queue-seq")
)

// BadgerConfig configures the badger-backed queue storage.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM. Tests only.
	InMemory bool
}

// BadgerStorage persists entries in BadgerDB under big-endian sequence keys,
// so key order is enqueue order.
type BadgerStorage struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadger opens (or creates) the queue database.
func OpenBadger(cfg BadgerConfig, logger *zap.Logger) (*BadgerStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("queue path is required for persistent storage")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create queue directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open queue sequence: %w", err)
	}
	return &BadgerStorage{db: db, seq: seq}, nil
}

// Append implements Storage.
func (s *BadgerStorage) Append(ctx context.Context, kind operations.Kind, payload []byte, enqueuedAt time.Time) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	next, err := s.seq.Next()
	if err != nil {
		return Entry{}, fmt.Errorf("next queue id: %w", err)
	}
	entry := Entry{
		ID:         next + 1,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: enqueuedAt.UnixMilli(),
	}
	value, err := cbor.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encode queue entry: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.ID), value)
	}); err != nil {
		return Entry{}, fmt.Errorf("write queue entry: %w", err)
	}
	return entry, nil
}

// List implements Storage.
func (s *BadgerStorage) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry Entry
			if err := cbor.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("decode queue entry %x: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove implements Storage.
func (s *BadgerStorage) Remove(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(id))
	})
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStorage) Close() error {
	var errs []error
	if err := s.seq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release queue sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close queue database: %w", err))
	}
	return errors.Join(errs...)
}

func entryKey(id uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], id)
	return key
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
