//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-room/domain"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix   = "msg:"
	messageSequence = "seq:msg"
	// sequenceBandwidth is how many sequence numbers badger leases at once.
	sequenceBandwidth = 100
)

type IMessageRepository interface {
	Append(message domain.Message) error
	ListAll() ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq}, nil
}

// Append persists a message in BadgerDB.
// The key is formatted as "msg:{sequence_padded}" so that a prefix scan returns
// messages in insertion order: the 20-digit zero padding keeps lexicographical
// order equal to numeric order. Display time plays no part in ordering.
func (m *MessageRepository) Append(message domain.Message) error {
	next, err := m.seq.Next()
	if err != nil {
		return fmt.Errorf("next message sequence: %w", err)
	}
	key := fmt.Sprintf("%s%020d", messagePrefix, next)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeMessage(message))
	})
}

// ListAll returns the whole history, oldest first.
func (m *MessageRepository) ListAll() ([]domain.Message, error) {
	messages, err := ReadMessages(m.db)
	if err != nil {
		return nil, err
	}
	m.log.Debug(fmt.Sprintf("%d messages loaded", len(messages)))
	return messages, nil
}

// ReadMessages scans the message history without leasing a sequence,
// so it also works on a database opened read-only.
func ReadMessages(db *badger.DB) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	err := scanPrefix(db, []byte(messagePrefix), func(key, value []byte) error {
		message, err := decodeMessage(value)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		messages = append(messages, message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Close hands unused sequence numbers back to badger.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}
