// Package store validates records and adds them to the trie.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/database"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/signing"
	"github.com/attestate/leafsync/trie"
)

var (
	// ErrNotAllowed is returned when the author is not on the allow list.
	ErrNotAllowed = errors.New("author not allowed")
	// ErrBadSignature is returned when the signature does not match the author.
	ErrBadSignature = errors.New("bad signature")
	// ErrRecordExists is returned when the record is already stored.
	ErrRecordExists = errors.New("record exists")
	// ErrInvalidRecord is returned for malformed records.
	ErrInvalidRecord = types.ErrInvalidRecord
)

// Config of the record store.
type Config struct {
	// MaxDrift bounds how far the timestamp of a new local record may be
	// from the local clock. Records received through sync are exempt.
	MaxDrift time.Duration `mapstructure:"max-drift"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxDrift: 10 * time.Minute}
}

// Opt for configuring Store.
type Opt func(*Store)

// WithConfig sets the configuration.
func WithConfig(cfg Config) Opt {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithClock sets the clock used for the drift check.
func WithClock(clock clockwork.Clock) Opt {
	return func(s *Store) {
		s.clock = clock
	}
}

// Store owns the trie of accepted records.
type Store struct {
	logger   *zap.Logger
	cfg      Config
	clock    clockwork.Clock
	verifier signing.Verifier
	trie     *trie.Trie
}

// New creates a store around an existing trie.
func New(logger *zap.Logger, verifier signing.Verifier, tr *trie.Trie, opts ...Opt) *Store {
	s := &Store{
		logger:   logger,
		cfg:      DefaultConfig(),
		clock:    clockwork.NewRealClock(),
		verifier: verifier,
		trie:     tr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open rebuilds the trie from the records persisted in table. New records
// committed to the trie are written to the same table.
func Open(logger *zap.Logger, verifier signing.Verifier, table *database.Table, opts ...Opt) (*Store, error) {
	entries, err := table.Entries()
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	valid := entries[:0]
	for _, e := range entries {
		if hash.Sum(e.Value) != e.Key {
			logger.Warn("skipping corrupted record", zap.Stringer("id", e.Key))
			continue
		}
		valid = append(valid, e)
	}
	tr := trie.New(table)
	if err := tr.Load(valid); err != nil {
		return nil, fmt.Errorf("rebuild trie: %w", err)
	}
	logger.Info("loaded records",
		zap.Int("records", tr.Len()),
		zap.Stringer("root", tr.Root()),
	)
	return New(logger, verifier, tr, opts...), nil
}

// Trie returns the trie of accepted records.
func (s *Store) Trie() *trie.Trie {
	return s.trie
}

// Add validates rec and puts it into w under its id. The timestamp is not
// checked for records received through sync.
func (s *Store) Add(w trie.Writer, rec *types.Record, allow map[string]struct{}, fromSync bool) error {
	_, err := s.add(w, rec, allow, fromSync)
	return err
}

func (s *Store) add(w trie.Writer, rec *types.Record, allow map[string]struct{}, fromSync bool) (hash.Hash32, error) {
	if err := rec.Validate(); err != nil {
		return hash.Hash32{}, err
	}
	if _, ok := allow[rec.Author]; !ok {
		return hash.Hash32{}, fmt.Errorf("%w: %s", ErrNotAllowed, rec.Author)
	}
	if !rec.Verify(s.verifier) {
		return hash.Hash32{}, fmt.Errorf("%w: author %s", ErrBadSignature, rec.Author)
	}
	if !fromSync {
		drift := s.clock.Since(time.Unix(rec.Timestamp, 0)).Abs()
		if drift > s.cfg.MaxDrift {
			return hash.Hash32{}, fmt.Errorf("%w: timestamp drifts %v from local clock", ErrInvalidRecord, drift)
		}
	}
	buf, err := rec.Encode()
	if err != nil {
		return hash.Hash32{}, err
	}
	id := hash.Sum(buf)
	if w.Has(id) {
		return id, fmt.Errorf("%w: %s", ErrRecordExists, id)
	}
	if err := w.Put(id, buf); err != nil {
		return id, fmt.Errorf("put record %s: %w", id, err)
	}
	s.logger.Debug("added record",
		zap.Stringer("id", id),
		zap.Bool("from_sync", fromSync),
		zap.Object("record", rec),
	)
	return id, nil
}

// Post signs a new local record and commits it to the trie.
func (s *Store) Post(signer signing.Signer, rec *types.Record, allow map[string]struct{}) (hash.Hash32, error) {
	if rec.Timestamp == 0 {
		rec.Timestamp = s.clock.Now().Unix()
	}
	if err := rec.Sign(signer); err != nil {
		return hash.Hash32{}, fmt.Errorf("sign record: %w", err)
	}
	cp := s.trie.Checkpoint()
	id, err := s.add(cp, rec, allow, false)
	if err != nil {
		cp.Revert()
		return id, err
	}
	if err := cp.Commit(); err != nil {
		return id, fmt.Errorf("commit record %s: %w", id, err)
	}
	s.logger.Info("posted record", zap.Stringer("id", id), zap.Stringer("root", s.trie.Root()))
	return id, nil
}

// Records returns every stored record.
func (s *Store) Records() ([]*types.Record, error) {
	var (
		records []*types.Record
		err     error
	)
	s.trie.Snapshot().Leaves(func(l *trie.Leaf) bool {
		var rec *types.Record
		rec, err = types.DecodeRecord(l.Value)
		if err != nil {
			err = fmt.Errorf("record %s: %w", l.Key, err)
			return false
		}
		records = append(records, rec)
		return true
	})
	return records, err
}
