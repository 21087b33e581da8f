// Package keystore is the badger-backed implementation of the document store
// the chat core runs against. Records are addressed the way the remote
// backend addresses them (conversation/{id}/publicKeys/{participant} and so
// on) and stored as JSON documents, one key per document.
package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	pubstore "github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/types"
)

var log *logrus.Logger

// StoreConfig configures the badger store.
type StoreConfig struct {
	// Path is the data directory. Created if missing.
	Path string
	// MinimumFreeGB is the free-space threshold checked at open.
	MinimumFreeGB int
	// Logger is an optional logrus logger. If nil, a default one is used.
	Logger *logrus.Logger
	// Authorizer models the backend security rules. Defaults to AllowAll.
	Authorizer pubstore.Authorizer
}

var _ pubstore.Store = (*Store)(nil)

// Store implements pkg/keystore.Store on top of badger.
type Store struct {
	config       StoreConfig
	badgerDB     *badger.DB
	authorizer   pubstore.Authorizer
	lastStamp    atomic.Int64
	readCounter  uint64
	writeCounter uint64
}

// Open opens (creating if needed) the store at config.Path.
func Open(config StoreConfig) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.Authorizer == nil {
		config.Authorizer = pubstore.AllowAll{}
	}

	if err := os.MkdirAll(config.Path, 0o700); err != nil {
		return nil, fmt.Errorf("error creating store path: %w", err)
	}
	if err := config.checkFreeSpace(); err != nil {
		return nil, fmt.Errorf("error checking config for Store: %w", err)
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Path, err)
	}

	return &Store{
		config:     config,
		badgerDB:   db,
		authorizer: config.Authorizer,
	}, nil
}

// Close syncs and closes the underlying database.
func (s *Store) Close() error {
	if err := s.badgerDB.Sync(); err != nil {
		log.WithField("err", err).Warn("error syncing db on close")
	}
	return s.badgerDB.Close()
}

// Stats returns the read and write operation counters.
func (s *Store) Stats() (reads, writes uint64) {
	return atomic.LoadUint64(&s.readCounter), atomic.LoadUint64(&s.writeCounter)
}

// Document key layout. The conversation document sits at the bare prefix;
// record classes hang off it the way the backend's collections do.
func conversationKey(conv types.ConversationID) []byte {
	return []byte("conversation/" + string(conv))
}

func publicKeyPrefix(conv types.ConversationID) []byte {
	return []byte("conversation/" + string(conv) + "/publicKeys/")
}

func publicKeyKey(conv types.ConversationID, p types.ParticipantID) []byte {
	return append(publicKeyPrefix(conv), []byte(p)...)
}

func privateKeyPrefix(conv types.ConversationID) []byte {
	return []byte("conversation/" + string(conv) + "/privateKeys/")
}

func privateKeyKey(conv types.ConversationID, p types.ParticipantID) []byte {
	return append(privateKeyPrefix(conv), []byte(p)...)
}

func messagePrefix(conv types.ConversationID) []byte {
	return []byte("conversation/" + string(conv) + "/messages/")
}

func messageKey(conv types.ConversationID, stamp int64) []byte {
	return append(messagePrefix(conv), []byte(fmt.Sprintf("%020d", stamp))...)
}

func membershipPrefix(p types.ParticipantID) []byte {
	return []byte("participant/" + string(p) + "/conversations/")
}

func membershipKey(p types.ParticipantID, conv types.ConversationID) []byte {
	return append(membershipPrefix(p), []byte(conv)...)
}

// read fetches one document and decodes it into out.
func (s *Store) read(key []byte, out any) error {
	atomic.AddUint64(&s.readCounter, 1)
	return s.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	})
}

// write stores one document.
func (s *Store) write(key []byte, doc any) error {
	atomic.AddUint64(&s.writeCounter, 1)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}
	return s.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

// now returns the server-assigned timestamp for a new message. Monotonic even
// when the wall clock stalls or steps backwards within the process.
func (s *Store) now() time.Time {
	for {
		prev := s.lastStamp.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if s.lastStamp.CompareAndSwap(prev, next) {
			return time.Unix(0, next)
		}
	}
}
