package redundancy

import (
	"strings"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const rttPrefix = "rtt_"

var sampleHandle = &codec.MsgpackHandle{}

// BadgerRouteStore persists RTT samples in a badger database, one key per peer
// under the rtt_ prefix.
type BadgerRouteStore struct {
	db   *badger.DB
	path string
}

// NewBadgerRouteStore opens the database in path, creating it if needed.
func NewBadgerRouteStore(path string, logger *logrus.Entry) (*BadgerRouteStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		opts = opts.WithLogger(logger.WithField("ns", "badger"))
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerRouteStore{
		db:   handle,
		path: path,
	}, nil
}

func rttKey(addr string) []byte {
	return []byte(rttPrefix + addr)
}

// Load implements RouteStore.
func (s *BadgerRouteStore) Load() (map[string][]time.Duration, error) {
	res := make(map[string][]time.Duration)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(rttPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			var window []time.Duration
			if err := codec.NewDecoderBytes(val, sampleHandle).Decode(&window); err != nil {
				return err
			}

			res[strings.TrimPrefix(string(item.KeyCopy(nil)), rttPrefix)] = window
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return res, nil
}

// Save implements RouteStore.
func (s *BadgerRouteStore) Save(samples map[string][]time.Duration) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	for addr, window := range samples {
		var val []byte
		if err := codec.NewEncoderBytes(&val, sampleHandle).Encode(window); err != nil {
			return err
		}
		if err := tx.Set(rttKey(addr), val); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close implements RouteStore.
func (s *BadgerRouteStore) Close() error {
	return s.db.Close()
}

// Path returns the directory of the database.
func (s *BadgerRouteStore) Path() string {
	return s.path
}
