package services

import (
	"chat-room/observability"
	"chat-room/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand so staleness can be tested without sleeping.
type fakeClock struct {
	at time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.at = c.at.Add(d)
}

type harness struct {
	clock        *fakeClock
	participants *repositories.ParticipantRepository
	messages     *repositories.MessageRepository
	presence     *PresenceService
	router       *MessageService
	metrics      *observability.ChatMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	messages, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() {
		_ = messages.Close()
		_ = db.Close()
	})

	clock := &fakeClock{at: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	participants := repositories.NewParticipantRepository(db, slog.Default())
	metrics := observability.NewChatMetrics()
	return &harness{
		clock:        clock,
		participants: participants,
		messages:     messages,
		metrics:      metrics,
		presence:     NewPresenceService(slog.Default(), participants, messages, metrics).WithClock(clock.Now),
		router:       NewMessageService(slog.Default(), participants, messages, metrics).WithClock(clock.Now),
	}
}
