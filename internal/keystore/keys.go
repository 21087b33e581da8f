package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/sealchat/sealchat/pkg/chaterr"
	pubstore "github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/types"
)

func (s *Store) authorize(op pubstore.Op, opName string, conv types.ConversationID, participant types.ParticipantID) error {
	if err := s.authorizer.Authorize(op, conv, participant); err != nil {
		log.WithFields(logrus.Fields{
			"op":           op,
			"conversation": conv,
			"participant":  participant,
		}).Warn("store operation denied")
		return chaterr.E(chaterr.KindAuthorizationDenied, opName, err)
	}
	return nil
}

// putKeyRecord upserts a key record, preserving CreatedAt on overwrite the
// way the backend's merge write does.
func (s *Store) putKeyRecord(key []byte, participant types.ParticipantID, payload string) error {
	now := time.Now()
	rec := types.KeyRecord{
		ParticipantID: participant,
		Payload:       payload,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var existing types.KeyRecord
	err := s.read(key, &existing)
	switch {
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
	case errors.Is(err, badger.ErrKeyNotFound):
		// first write
	default:
		return err
	}

	return s.write(key, rec)
}

func (s *Store) getKeyRecord(key []byte, opName string) (string, error) {
	var rec types.KeyRecord
	err := s.read(key, &rec)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", chaterr.E(chaterr.KindKeyNotFound, opName, nil)
	}
	if err != nil {
		return "", err
	}
	return rec.Payload, nil
}

func (s *Store) PutPublicKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID, payload string) error {
	if err := s.authorize(pubstore.OpWritePublicKey, "keystore.PutPublicKey", conv, participant); err != nil {
		return err
	}
	return s.putKeyRecord(publicKeyKey(conv, participant), participant, payload)
}

func (s *Store) GetPublicKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (string, error) {
	if err := s.authorize(pubstore.OpReadPublicKey, "keystore.GetPublicKey", conv, participant); err != nil {
		return "", err
	}
	return s.getKeyRecord(publicKeyKey(conv, participant), "keystore.GetPublicKey")
}

func (s *Store) PutSealedPrivateKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID, blob string) error {
	if err := s.authorize(pubstore.OpWritePrivateKey, "keystore.PutSealedPrivateKey", conv, participant); err != nil {
		return err
	}
	return s.putKeyRecord(privateKeyKey(conv, participant), participant, blob)
}

func (s *Store) GetSealedPrivateKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (string, error) {
	if err := s.authorize(pubstore.OpReadPrivateKey, "keystore.GetSealedPrivateKey", conv, participant); err != nil {
		return "", err
	}
	return s.getKeyRecord(privateKeyKey(conv, participant), "keystore.GetSealedPrivateKey")
}

// HasKeys is true only when both the public and the sealed private record
// exist; a half-provisioned participant still needs provisioning.
func (s *Store) HasKeys(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (bool, error) {
	if err := s.authorize(pubstore.OpReadPrivateKey, "keystore.HasKeys", conv, participant); err != nil {
		return false, err
	}

	both := false
	err := s.badgerDB.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(publicKeyKey(conv, participant)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if _, err := txn.Get(privateKeyKey(conv, participant)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		both = true
		return nil
	})
	return both, err
}

func (s *Store) ListParticipantsWithKeys(ctx context.Context, conv types.ConversationID) ([]types.ParticipantID, error) {
	if err := s.authorize(pubstore.OpReadPublicKey, "keystore.ListParticipantsWithKeys", conv, ""); err != nil {
		return nil, err
	}

	var participants []types.ParticipantID
	err := s.scanPrefix(publicKeyPrefix(conv), func(_, value []byte) error {
		var rec types.KeyRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		participants = append(participants, rec.ParticipantID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// DeleteKeys removes both records. Absence of a prior record is not an error.
func (s *Store) DeleteKeys(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) error {
	if err := s.authorize(pubstore.OpDeleteKeys, "keystore.DeleteKeys", conv, participant); err != nil {
		return err
	}
	atomic.AddUint64(&s.writeCounter, 1)
	return s.badgerDB.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(publicKeyKey(conv, participant)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete(privateKeyKey(conv, participant)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// scanPrefix iterates every (key, value) under the prefix.
func (s *Store) scanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	return s.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}
