//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"chat-room/domain"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const participantPrefix = "participant:"

var (
	ErrDuplicateKey        = fmt.Errorf("duplicate key")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
)

type IParticipantRepository interface {
	Find(name string) (domain.Participant, bool, error)
	Insert(participant domain.Participant) error
	Update(name string, lastSeen time.Time) error
	Delete(name string) error
	DeleteIfIdle(name string, cutoff time.Time) (bool, error)
	ListAll() ([]domain.Participant, error)
}

// ParticipantRepository stores one key per participant.
// Every mutation runs in its own badger transaction, so operations on a single
// name are atomic while unrelated names never contend.
type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{db: db, log: log}
}

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

func (r *ParticipantRepository) Find(name string) (domain.Participant, bool, error) {
	var participant domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		participant, err = getParticipant(txn, name)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, false, nil
	}
	if err != nil {
		return domain.Participant{}, false, err
	}
	return participant, true, nil
}

// Insert fails with ErrDuplicateKey when the name is already taken.
// The existence check and the write share one transaction.
func (r *ParticipantRepository) Insert(participant domain.Participant) error {
	key := participantKey(participant.Name)
	return update(r.db, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateKey
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, encodeParticipant(participant))
	})
}

func (r *ParticipantRepository) Update(name string, lastSeen time.Time) error {
	return update(r.db, func(txn *badger.Txn) error {
		participant, err := getParticipant(txn, name)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrParticipantNotFound
		}
		if err != nil {
			return err
		}
		participant.LastSeen = lastSeen
		return txn.Set(participantKey(name), encodeParticipant(participant))
	})
}

func (r *ParticipantRepository) Delete(name string) error {
	return update(r.db, func(txn *badger.Txn) error {
		return txn.Delete(participantKey(name))
	})
}

// DeleteIfIdle removes the participant only if its LastSeen is still before cutoff
// when the transaction commits. It reports whether a record was removed, so a
// heartbeat landing between a sweep's listing and its delete keeps the participant.
func (r *ParticipantRepository) DeleteIfIdle(name string, cutoff time.Time) (bool, error) {
	var deleted bool
	err := update(r.db, func(txn *badger.Txn) error {
		deleted = false
		participant, err := getParticipant(txn, name)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !participant.LastSeen.Before(cutoff) {
			r.log.Debug("Participant refreshed before eviction", "name", name)
			return nil
		}
		if err = txn.Delete(participantKey(name)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *ParticipantRepository) ListAll() ([]domain.Participant, error) {
	participants := make([]domain.Participant, 0)
	err := scanPrefix(r.db, []byte(participantPrefix), func(key, value []byte) error {
		participant, err := decodeParticipant(value)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		participants = append(participants, participant)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func getParticipant(txn *badger.Txn, name string) (domain.Participant, error) {
	item, err := txn.Get(participantKey(name))
	if err != nil {
		return domain.Participant{}, err
	}
	var participant domain.Participant
	err = item.Value(func(val []byte) error {
		participant, err = decodeParticipant(val)
		return err
	})
	return participant, err
}
