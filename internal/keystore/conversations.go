package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sealchat/sealchat/pkg/chaterr"
	pubstore "github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/types"
)

// CreateConversation writes the conversation document and both membership
// index entries. There is no check-then-create guard: a racing second create
// writes value-identical content, so last writer wins harmlessly.
func (s *Store) CreateConversation(ctx context.Context, conv types.ConversationID, a, b types.ParticipantID) error {
	if err := s.authorize(pubstore.OpWriteMessages, "keystore.CreateConversation", conv, ""); err != nil {
		return err
	}

	expected, err := types.NewConversationID(a, b)
	if err != nil {
		return err
	}
	if expected != conv {
		return fmt.Errorf("conversation id %q does not match participants %q and %q", conv, a, b)
	}

	var rec types.ConversationRecord
	err = s.read(conversationKey(conv), &rec)
	switch {
	case err == nil:
		// Already created; keep the original CreatedAt.
	case errors.Is(err, badger.ErrKeyNotFound):
		first, second, _ := conv.Participants()
		rec = types.ConversationRecord{
			ParticipantA: first,
			ParticipantB: second,
			CreatedAt:    time.Now(),
		}
	default:
		return err
	}

	if err := s.write(conversationKey(conv), rec); err != nil {
		return err
	}
	if err := s.write(membershipKey(a, conv), []byte{}); err != nil {
		return err
	}
	return s.write(membershipKey(b, conv), []byte{})
}

func (s *Store) GetConversation(ctx context.Context, conv types.ConversationID) (types.ConversationRecord, error) {
	if err := s.authorize(pubstore.OpReadMessages, "keystore.GetConversation", conv, ""); err != nil {
		return types.ConversationRecord{}, err
	}

	var rec types.ConversationRecord
	err := s.read(conversationKey(conv), &rec)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.ConversationRecord{}, chaterr.E(chaterr.KindKeyNotFound, "keystore.GetConversation", nil)
	}
	if err != nil {
		return types.ConversationRecord{}, err
	}
	return rec, nil
}

// ListConversations resolves every conversation the participant belongs to
// from the membership index. This is the entry point of the re-sealing
// sweep; an authorization denial here aborts the whole sweep.
func (s *Store) ListConversations(ctx context.Context, participant types.ParticipantID) ([]types.ConversationID, error) {
	if err := s.authorize(pubstore.OpListChats, "keystore.ListConversations", "", participant); err != nil {
		return nil, err
	}

	prefix := membershipPrefix(participant)
	var convs []types.ConversationID
	err := s.scanPrefix(prefix, func(key, _ []byte) error {
		convs = append(convs, types.ConversationID(key[len(prefix):]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}
