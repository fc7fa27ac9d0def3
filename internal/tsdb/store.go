// Package tsdb stores tower timeseries stats (channel load, cpu, noise...)
// in hourly compressed blocks on top of badger.
package tsdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const blockSpan = time.Hour

// Sample is a single observation of a tower stat.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Config holds store settings.
type Config struct {
	Path             string
	CompressionLevel int
	InMemory         bool
}

// Store is the badger-backed sample store.
type Store struct {
	db    *badger.DB
	codec *codec
	// mu serializes the read-merge-write of a block.
	mu sync.Mutex
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	c, err := newCodec(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, codec: c}, nil
}

// Close releases the database and codec.
func (s *Store) Close() error {
	s.codec.close()
	return s.db.Close()
}

// Write appends samples for a tower stat. Samples landing in an existing
// block are merged with it, keeping the block ordered by timestamp; a sample
// with the same timestamp as a stored one replaces it.
func (s *Store) Write(ctx context.Context, towerID int64, key string, samples []Sample) error {
	blocks := make(map[int64][]Sample)
	for _, smp := range samples {
		b := smp.Timestamp.Truncate(blockSpan).Unix()
		blocks[b] = append(blocks[b], smp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		for block, fresh := range blocks {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := blockKey(towerID, key, block)
			existing, err := s.readBlock(txn, k)
			if err != nil {
				return err
			}
			merged := mergeSamples(existing, fresh)
			if err := txn.Set(k, s.codec.encode(merged)); err != nil {
				return fmt.Errorf("failed to write block: %w", err)
			}
		}
		return nil
	})
}

// Query returns the samples of one tower stat with start <= ts <= end, in
// timestamp order.
func (s *Store) Query(ctx context.Context, towerID int64, key string, start, end time.Time) ([]Sample, error) {
	var out []Sample
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := seriesPrefix(towerID, key)
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 16, Prefix: prefix})
		defer it.Close()

		first := blockKey(towerID, key, start.Truncate(blockSpan).Unix())
		last := end.Truncate(blockSpan).Unix()
		for it.Seek(first); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if blockTime(item.Key()) > last {
				break
			}
			var samples []Sample
			err := item.Value(func(val []byte) error {
				var err error
				samples, err = s.codec.decode(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("block %x: %w", item.Key(), err)
			}
			for _, smp := range samples {
				if smp.Timestamp.Before(start) || smp.Timestamp.After(end) {
					continue
				}
				out = append(out, smp)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) readBlock(txn *badger.Txn, k []byte) ([]Sample, error) {
	item, err := txn.Get(k)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var samples []Sample
	err = item.Value(func(val []byte) error {
		samples, err = s.codec.decode(val)
		return err
	})
	return samples, err
}

func mergeSamples(existing, fresh []Sample) []Sample {
	byTS := make(map[int64]float64, len(existing)+len(fresh))
	for _, smp := range existing {
		byTS[smp.Timestamp.UnixMilli()] = smp.Value
	}
	for _, smp := range fresh {
		byTS[smp.Timestamp.UnixMilli()] = smp.Value
	}
	out := make([]Sample, 0, len(byTS))
	for ts, v := range byTS {
		out = append(out, Sample{Timestamp: timeFromMillis(ts), Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Keys are "t/<tower>/<stat>/" followed by the big-endian block start so
// that blocks of one series iterate in time order.
func seriesPrefix(towerID int64, key string) []byte {
	return []byte("t/" + strconv.FormatInt(towerID, 10) + "/" + key + "/")
}

func blockKey(towerID int64, key string, block int64) []byte {
	k := seriesPrefix(towerID, key)
	return binary.BigEndian.AppendUint64(k, uint64(block))
}

func blockTime(k []byte) int64 {
	if len(k) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(k[len(k)-8:]))
}

func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
