package keystore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sealchat/sealchat/pkg/chaterr"
	pubstore "github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/types"
)

// AppendMessage persists a message. The store assigns the document ID (if
// unset) and the server-side timestamp; message keys sort chronologically.
func (s *Store) AppendMessage(ctx context.Context, rec types.MessageRecord) (types.MessageRecord, error) {
	if err := s.authorize(pubstore.OpWriteMessages, "keystore.AppendMessage", rec.ConversationID, rec.SenderID); err != nil {
		return types.MessageRecord{}, err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Timestamp = s.now()

	key := messageKey(rec.ConversationID, rec.Timestamp.UnixNano())
	if err := s.write(key, rec); err != nil {
		return types.MessageRecord{}, err
	}

	log.WithFields(logrus.Fields{
		"conversation": rec.ConversationID,
		"message":      rec.ID,
	}).Debug("message appended")
	return rec, nil
}

// ListMessages returns messages in timestamp order, oldest first.
func (s *Store) ListMessages(ctx context.Context, conv types.ConversationID, limit int) ([]types.MessageRecord, error) {
	if err := s.authorize(pubstore.OpReadMessages, "keystore.ListMessages", conv, ""); err != nil {
		return nil, err
	}

	var records []types.MessageRecord
	err := s.scanPrefix(messagePrefix(conv), func(_, value []byte) error {
		var rec types.MessageRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// GetMessage returns one message by document ID.
func (s *Store) GetMessage(ctx context.Context, conv types.ConversationID, msgID string) (types.MessageRecord, error) {
	if err := s.authorize(pubstore.OpReadMessages, "keystore.GetMessage", conv, ""); err != nil {
		return types.MessageRecord{}, err
	}

	key, err := s.findMessageKey(conv, msgID)
	if err != nil {
		return types.MessageRecord{}, err
	}
	if key == nil {
		return types.MessageRecord{}, chaterr.E(chaterr.KindKeyNotFound, "keystore.GetMessage",
			errors.New("no message "+msgID+" in "+string(conv)))
	}

	var rec types.MessageRecord
	if err := s.read(key, &rec); err != nil {
		return types.MessageRecord{}, err
	}
	return rec, nil
}

func (s *Store) MarkRead(ctx context.Context, conv types.ConversationID, msgID string) error {
	if err := s.authorize(pubstore.OpWriteMessages, "keystore.MarkRead", conv, ""); err != nil {
		return err
	}
	return s.updateMessage(conv, msgID, func(rec *types.MessageRecord) {
		rec.Read = true
	})
}

// DeleteMessage removes one message. Absence is not an error.
func (s *Store) DeleteMessage(ctx context.Context, conv types.ConversationID, msgID string) error {
	if err := s.authorize(pubstore.OpWriteMessages, "keystore.DeleteMessage", conv, ""); err != nil {
		return err
	}

	key, err := s.findMessageKey(conv, msgID)
	if err != nil || key == nil {
		return err
	}
	return s.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Store) UnreadCount(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (int, error) {
	if err := s.authorize(pubstore.OpReadMessages, "keystore.UnreadCount", conv, participant); err != nil {
		return 0, err
	}

	count := 0
	err := s.scanPrefix(messagePrefix(conv), func(_, value []byte) error {
		var rec types.MessageRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		if !rec.Read && rec.SenderID != participant {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) findMessageKey(conv types.ConversationID, msgID string) ([]byte, error) {
	var found []byte
	err := s.scanPrefix(messagePrefix(conv), func(key, value []byte) error {
		if found != nil {
			return nil
		}
		var rec types.MessageRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		if rec.ID == msgID {
			found = key
		}
		return nil
	})
	return found, err
}

func (s *Store) updateMessage(conv types.ConversationID, msgID string, mutate func(*types.MessageRecord)) error {
	key, err := s.findMessageKey(conv, msgID)
	if err != nil {
		return err
	}
	if key == nil {
		return errors.New("message not found: " + msgID)
	}

	return s.badgerDB.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var rec types.MessageRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		mutate(&rec)
		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, out)
	})
}
