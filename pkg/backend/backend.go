// Package backend is an embedded reference implementation of the engine's
// collaborator contracts, backed by BadgerDB.
//
// It exists so the engine is runnable end to end (the CLI demo) and so the
// collaborator contracts have a real second implementation next to the
// GraphQL client. It is not a product server: table schemas are declared at
// open time, rows live under per-table key prefixes, and totals are cached
// in memory for O(1) page counts.
//
// Key structure:
//   - Rows:     0x01 + table + 0x00 + seq(8 bytes BE) -> JSON(values)
//   - Id index: 0x02 + table + 0x00 + rowID           -> seq(8 bytes BE)
//
// The sequence number preserves insertion order, which is the server order
// pages and chunks are served in.
package backend

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
)

const (
	prefixRow   = byte(0x01)
	prefixRowID = byte(0x02)
)

var (
	// ErrUnknownTable is returned for a table key not declared at open.
	ErrUnknownTable = errors.New("backend: unknown table")
	// ErrRowNotFound is returned when a row id resolves to nothing.
	ErrRowNotFound = errors.New("backend: row not found")
)

// Store is the embedded backend. It implements source.RowFetcher,
// source.RowMutator, and schema.MetadataService.
type Store struct {
	db     *badger.DB
	mu     sync.RWMutex
	tables map[string]*schema.TableMeta
	counts map[string]int
	seq    uint64
	closed bool
}

// Open opens (or creates) a store at dir with the given table schemas.
func Open(dir string, tables []*schema.TableMeta) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil), tables)
}

// OpenInMemory opens a store that never touches disk. Used by tests and the
// demo's ephemeral mode.
func OpenInMemory(tables []*schema.TableMeta) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), tables)
}

func open(opts badger.Options, tables []*schema.TableMeta) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WithMessage(err, "backend: open badger")
	}

	s := &Store{
		db:     db,
		tables: make(map[string]*schema.TableMeta, len(tables)),
		counts: make(map[string]int, len(tables)),
	}
	for _, meta := range tables {
		s.tables[meta.TableKey] = meta.Clone()
	}
	if err := s.loadCounts(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// loadCounts scans the row prefix once at open so totals are O(1) after.
// The max sequence is recovered at the same time.
func (s *Store) loadCounts() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixRow}})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			table, seq, ok := splitRowKey(key)
			if !ok {
				continue
			}
			s.counts[table]++
			if seq > s.seq {
				s.seq = seq
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func rowKey(table string, seq uint64) []byte {
	key := make([]byte, 0, 1+len(table)+1+8)
	key = append(key, prefixRow)
	key = append(key, table...)
	key = append(key, 0x00)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

func rowIDKey(table, id string) []byte {
	key := make([]byte, 0, 1+len(table)+1+len(id))
	key = append(key, prefixRowID)
	key = append(key, table...)
	key = append(key, 0x00)
	return append(key, id...)
}

func tablePrefix(table string) []byte {
	key := make([]byte, 0, 1+len(table)+1)
	key = append(key, prefixRow)
	key = append(key, table...)
	return append(key, 0x00)
}

func splitRowKey(key []byte) (table string, seq uint64, ok bool) {
	if len(key) < 10 || key[0] != prefixRow {
		return "", 0, false
	}
	body := key[1:]
	sep := -1
	for i := len(body) - 9; i >= 0; i-- {
		if body[i] == 0x00 {
			sep = i
			break
		}
	}
	if sep < 0 {
		return "", 0, false
	}
	return string(body[:sep]), binary.BigEndian.Uint64(body[len(body)-8:]), true
}

// TableMeta implements schema.MetadataService.
func (s *Store) TableMeta(_ context.Context, tableKey string) (*schema.TableMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.tables[tableKey]
	if !ok {
		return nil, ErrUnknownTable
	}
	return meta.Clone(), nil
}

// FetchPage implements source.RowFetcher. Rows are served in insertion
// order; offset rows are skipped, limit rows collected.
func (s *Store) FetchPage(_ context.Context, tableKey string, limit, offset int) ([]rows.RowData, int, error) {
	s.mu.RLock()
	_, known := s.tables[tableKey]
	total := s.counts[tableKey]
	s.mu.RUnlock()
	if !known {
		return nil, 0, ErrUnknownTable
	}

	out := make([]rows.RowData, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: tablePrefix(tableKey), PrefetchValues: true, PrefetchSize: limit})
		defer it.Close()
		skipped := 0
		for it.Rewind(); it.Valid() && len(out) < limit; it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				var row rows.RowData
				if err := json.Unmarshal(val, &row); err != nil {
					return err
				}
				out = append(out, row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "backend: fetch page of %q", tableKey)
	}
	return out, total, nil
}

// FetchChunk implements source.RowFetcher.
func (s *Store) FetchChunk(ctx context.Context, tableKey string, start, end int) ([]rows.RowData, error) {
	fetched, _, err := s.FetchPage(ctx, tableKey, end-start, start)
	return fetched, err
}

// Create implements source.RowMutator. The store assigns the id and the
// server-managed timestamps.
func (s *Store) Create(_ context.Context, tableKey string, values rows.RowData) (rows.RowData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tableKey]; !ok {
		return nil, ErrUnknownTable
	}

	row := values.Clone()
	if row == nil {
		row = rows.RowData{}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	row["id"] = uuid.NewString()
	row["createdAt"] = now
	row["updatedAt"] = now

	s.seq++
	seq := s.seq
	encoded, err := json.Marshal(row)
	if err != nil {
		return nil, errors.WithMessage(err, "backend: encode row")
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(rowKey(tableKey, seq), encoded); err != nil {
			return err
		}
		return txn.Set(rowIDKey(tableKey, row["id"].(string)), seqBuf[:])
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "backend: create row in %q", tableKey)
	}

	s.counts[tableKey]++
	return row, nil
}

// Update implements source.RowMutator and echoes the full updated row.
func (s *Store) Update(_ context.Context, tableKey, rowID string, patch rows.RowData) (rows.RowData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tableKey]; !ok {
		return nil, ErrUnknownTable
	}

	var updated rows.RowData
	err := s.db.Update(func(txn *badger.Txn) error {
		seq, err := lookupSeq(txn, tableKey, rowID)
		if err != nil {
			return err
		}
		item, err := txn.Get(rowKey(tableKey, seq))
		if err != nil {
			return translateBadgerErr(err)
		}
		var row rows.RowData
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &row) }); err != nil {
			return err
		}
		for k, v := range patch {
			row[k] = v
		}
		row["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
		encoded, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := txn.Set(rowKey(tableKey, seq), encoded); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return nil, err
		}
		return nil, errors.WithMessagef(err, "backend: update row %q in %q", rowID, tableKey)
	}
	return updated, nil
}

// Delete implements source.RowMutator.
func (s *Store) Delete(_ context.Context, tableKey, rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tableKey]; !ok {
		return ErrUnknownTable
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		seq, err := lookupSeq(txn, tableKey, rowID)
		if err != nil {
			return err
		}
		if err := txn.Delete(rowKey(tableKey, seq)); err != nil {
			return err
		}
		return txn.Delete(rowIDKey(tableKey, rowID))
	})
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return err
		}
		return errors.WithMessagef(err, "backend: delete row %q from %q", rowID, tableKey)
	}

	s.counts[tableKey]--
	return nil
}

func lookupSeq(txn *badger.Txn, tableKey, rowID string) (uint64, error) {
	item, err := txn.Get(rowIDKey(tableKey, rowID))
	if err != nil {
		return 0, translateBadgerErr(err)
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func translateBadgerErr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrRowNotFound
	}
	return err
}

var (
	_ source.RowFetcher      = (*Store)(nil)
	_ source.RowMutator      = (*Store)(nil)
	_ schema.MetadataService = (*Store)(nil)
)
