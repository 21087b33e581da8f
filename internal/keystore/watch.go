package keystore

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"

	pubstore "github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/types"
)

// watchBuffer bounds how many undelivered events a slow consumer can pile up
// before further ones are dropped.
const watchBuffer = 64

// WatchKeys subscribes to both participants' key records in the
// conversation. The caller owns the returned watch and must Cancel it when
// the conversation view goes away.
func (s *Store) WatchKeys(ctx context.Context, conv types.ConversationID) (*pubstore.Watch, error) {
	if err := s.authorize(pubstore.OpReadPublicKey, "keystore.WatchKeys", conv, ""); err != nil {
		return nil, err
	}
	matches := []pb.Match{
		{Prefix: publicKeyPrefix(conv)},
		{Prefix: privateKeyPrefix(conv)},
	}
	return s.subscribe(ctx, conv, matches), nil
}

// WatchMessages subscribes to the conversation's message documents.
func (s *Store) WatchMessages(ctx context.Context, conv types.ConversationID) (*pubstore.Watch, error) {
	if err := s.authorize(pubstore.OpReadMessages, "keystore.WatchMessages", conv, ""); err != nil {
		return nil, err
	}
	matches := []pb.Match{{Prefix: messagePrefix(conv)}}
	return s.subscribe(ctx, conv, matches), nil
}

func (s *Store) subscribe(ctx context.Context, conv types.ConversationID, matches []pb.Match) *pubstore.Watch {
	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan pubstore.Event, watchBuffer)

	go func() {
		defer close(events)
		err := s.badgerDB.Subscribe(subCtx, func(kvs *badger.KVList) error {
			for _, kv := range kvs.Kv {
				ev, ok := s.classify(conv, kv.Key, kv.Value)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-subCtx.Done():
					return subCtx.Err()
				default:
					// Consumer stalled; drop rather than block writes.
					log.WithField("conversation", conv).Warn("watch buffer full, dropping event")
				}
			}
			return nil
		}, matches)
		if err != nil && err != context.Canceled {
			log.WithField("err", err).Debug("watch subscription ended")
		}
	}()

	return pubstore.NewWatch(events, cancel)
}

func (s *Store) classify(conv types.ConversationID, key, value []byte) (pubstore.Event, bool) {
	switch {
	case bytes.HasPrefix(key, publicKeyPrefix(conv)):
		return pubstore.Event{
			Kind:           pubstore.EventPublicKey,
			ConversationID: conv,
			ParticipantID:  types.ParticipantID(key[len(publicKeyPrefix(conv)):]),
		}, true
	case bytes.HasPrefix(key, privateKeyPrefix(conv)):
		return pubstore.Event{
			Kind:           pubstore.EventPrivateKey,
			ConversationID: conv,
			ParticipantID:  types.ParticipantID(key[len(privateKeyPrefix(conv)):]),
		}, true
	case bytes.HasPrefix(key, messagePrefix(conv)):
		var rec types.MessageRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return pubstore.Event{}, false
		}
		return pubstore.Event{
			Kind:           pubstore.EventMessage,
			ConversationID: conv,
			ParticipantID:  rec.SenderID,
			MessageID:      rec.ID,
		}, true
	}
	return pubstore.Event{}, false
}
