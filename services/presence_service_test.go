package services

import (
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/mocks"
	"chat-room/observability"
	"chat-room/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const staleThreshold = 10 * time.Second

func TestPresenceService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert participant and announce arrival", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		req.NoError(h.presence.Register(ctx, "Alice"))

		participants, err := h.presence.List(ctx)
		req.NoError(err)
		req.Len(participants, 1)
		req.Equal("Alice", participants[0].Name)
		req.True(h.clock.Now().Equal(participants[0].LastSeen))

		messages, err := h.messages.ListAll()
		req.NoError(err)
		req.Len(messages, 1)
		req.Equal("Alice", messages[0].From)
		req.Equal(domain.Broadcast, messages[0].To)
		req.Equal(domain.TextEntered, messages[0].Text)
		req.Equal(domain.MessageTypeStatus, messages[0].Type)
		req.Equal("12:00:00", messages[0].Time)
		req.Equal(float64(1), testutil.ToFloat64(h.metrics.Registrations))
	})

	t.Run("should reject a second registration of the same name", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		req.NoError(h.presence.Register(ctx, "Alice"))
		req.ErrorIs(h.presence.Register(ctx, "Alice"), errors.ErrAlreadyExists)

		participants, err := h.presence.List(ctx)
		req.NoError(err)
		req.Len(participants, 1)

		messages, err := h.messages.ListAll()
		req.NoError(err)
		req.Len(messages, 1)
	})

	t.Run("should treat names as case sensitive", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		req.NoError(h.presence.Register(ctx, "Alice"))
		req.NoError(h.presence.Register(ctx, "alice"))
	})

	t.Run("should reject empty and reserved names", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		var verr *errors.ValidationError
		req.ErrorAs(h.presence.Register(ctx, ""), &verr)
		req.Equal([]string{"name"}, verr.Fields)

		req.ErrorIs(h.presence.Register(ctx, domain.Broadcast), errors.ErrValidation)

		participants, err := h.presence.List(ctx)
		req.NoError(err)
		req.Empty(participants)
	})

	t.Run("should reject names longer than the limit before touching the store", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		var verr *errors.ValidationError
		req.ErrorAs(h.presence.Register(ctx, strings.Repeat("a", 70000)), &verr)
		req.Equal([]string{"name"}, verr.Fields)
		req.NotErrorIs(verr, errors.ErrStoreUnavailable)

		longest := strings.Repeat("a", MaxNameLength)
		req.NoError(h.presence.Register(ctx, longest))
		req.ErrorAs(h.presence.Register(ctx, longest+"a"), &verr)

		participants, err := h.presence.List(ctx)
		req.NoError(err)
		req.Len(participants, 1)
		req.Equal(longest, participants[0].Name)
	})

	t.Run("should only let one of many concurrent registrations succeed", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- h.presence.Register(ctx, "Alice")
			}()
		}
		wg.Wait()
		close(results)

		var succeeded, duplicates int
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errors.ErrAlreadyExists):
				duplicates++
			}
		}
		req.Equal(1, succeeded)
		req.Equal(7, duplicates)

		messages, err := h.messages.ListAll()
		req.NoError(err)
		req.Len(messages, 1)
	})
}

func TestPresenceService_Register_StoreFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	participantRepository := mocks.NewMockIParticipantRepository(ctrl)
	messageRepository := mocks.NewMockIMessageRepository(ctrl)
	svc := NewPresenceService(slog.Default(), participantRepository, messageRepository, observability.NewChatMetrics())

	participantRepository.EXPECT().Insert(gomock.Any()).Return(fmt.Errorf("disk full")).Times(1)
	// No status message must be recorded for a participant that was never stored
	messageRepository.EXPECT().Append(gomock.Any()).Times(0)

	err := svc.Register(context.Background(), "Alice")
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}

func TestPresenceService_Heartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("should refresh last seen", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		req.NoError(h.presence.Register(ctx, "Alice"))

		h.clock.Advance(8 * time.Second)
		req.NoError(h.presence.Heartbeat(ctx, "Alice"))

		participant, ok, err := h.participants.Find("Alice")
		req.NoError(err)
		req.True(ok)
		req.True(h.clock.Now().Equal(participant.LastSeen))
	})

	t.Run("should fail for unknown participant", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		req.ErrorIs(h.presence.Heartbeat(ctx, "Ghost"), errors.ErrNotFound)
		req.ErrorIs(h.presence.Heartbeat(ctx, ""), errors.ErrNotFound)
	})
}

func TestPresenceService_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("should evict idle participants and announce each departure once", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		req.NoError(h.presence.Register(ctx, "Alice"))
		req.NoError(h.presence.Register(ctx, "Bob"))
		h.clock.Advance(5 * time.Second)
		req.NoError(h.presence.Register(ctx, "Clara"))
		h.clock.Advance(6 * time.Second)

		report, err := h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
		req.NoError(err)
		req.ElementsMatch([]string{"Alice", "Bob"}, report.Evicted)
		req.Empty(report.Failed)

		participants, err := h.presence.List(ctx)
		req.NoError(err)
		req.Len(participants, 1)
		req.Equal("Clara", participants[0].Name)

		messages, err := h.messages.ListAll()
		req.NoError(err)
		left := map[string]int{}
		for _, m := range messages {
			if m.Type == domain.MessageTypeStatus && m.Text == domain.TextLeft {
				req.Equal(domain.Broadcast, m.To)
				left[m.From]++
			}
		}
		req.Equal(map[string]int{"Alice": 1, "Bob": 1}, left)
		req.Equal(float64(2), testutil.ToFloat64(h.metrics.Evictions))
	})

	t.Run("should keep a participant exactly at the threshold", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		req.NoError(h.presence.Register(ctx, "Alice"))
		h.clock.Advance(staleThreshold)

		report, err := h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
		req.NoError(err)
		req.Empty(report.Evicted)
	})

	t.Run("should not evict a participant refreshed by heartbeat", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		req.NoError(h.presence.Register(ctx, "Alice"))

		h.clock.Advance(9 * time.Second)
		req.NoError(h.presence.Heartbeat(ctx, "Alice"))
		// 19s since registration but only 10s since the heartbeat
		h.clock.Advance(staleThreshold)

		report, err := h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
		req.NoError(err)
		req.Empty(report.Evicted)

		h.clock.Advance(time.Millisecond)
		report, err = h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
		req.NoError(err)
		req.Equal([]string{"Alice"}, report.Evicted)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		req.NoError(h.presence.Register(ctx, "Alice"))
		h.clock.Advance(time.Minute)

		first, err := h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
		req.NoError(err)
		req.Equal([]string{"Alice"}, first.Evicted)

		second, err := h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
		req.NoError(err)
		req.Empty(second.Evicted)

		messages, err := h.messages.ListAll()
		req.NoError(err)
		req.Len(messages, 2)
	})

	t.Run("should evict once when sweeps overlap", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		for i := 0; i < 5; i++ {
			req.NoError(h.presence.Register(ctx, fmt.Sprintf("user-%d", i)))
		}
		h.clock.Advance(time.Minute)

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.presence.Sweep(ctx, h.clock.Now(), staleThreshold)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		messages, err := h.messages.ListAll()
		req.NoError(err)
		left := 0
		for _, m := range messages {
			if m.Text == domain.TextLeft {
				left++
			}
		}
		req.Equal(5, left)
	})
}

func TestPresenceService_Sweep_FailureIsolation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	participantRepository := mocks.NewMockIParticipantRepository(ctrl)
	messageRepository := mocks.NewMockIMessageRepository(ctrl)
	metrics := observability.NewChatMetrics()
	svc := NewPresenceService(slog.Default(), participantRepository, messageRepository, metrics)

	now := time.Now()
	participantRepository.EXPECT().ListAll().Return([]domain.Participant{
		{Name: "Alice", LastSeen: now.Add(-time.Minute)},
		{Name: "Bob", LastSeen: now.Add(-time.Minute)},
		{Name: "Clara", LastSeen: now},
	}, nil)
	cutoff := now.Add(-staleThreshold)
	participantRepository.EXPECT().DeleteIfIdle("Alice", cutoff).Return(false, fmt.Errorf("corrupted record"))
	participantRepository.EXPECT().DeleteIfIdle("Bob", cutoff).Return(true, nil)
	messageRepository.EXPECT().Append(gomock.Any()).DoAndReturn(func(m domain.Message) error {
		req.Equal("Bob", m.From)
		req.Equal(domain.TextLeft, m.Text)
		return nil
	}).Times(1)

	report, err := svc.Sweep(context.Background(), now, staleThreshold)
	req.NoError(err)
	req.Equal([]string{"Bob"}, report.Evicted)
	req.Len(report.Failed, 1)
	req.ErrorIs(report.Failed["Alice"], errors.ErrStoreUnavailable)
	req.Equal(float64(1), testutil.ToFloat64(metrics.EvictionFailures))
}

func TestPresenceService_Sweep_ListFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	participantRepository := mocks.NewMockIParticipantRepository(ctrl)
	svc := NewPresenceService(slog.Default(), participantRepository, mocks.NewMockIMessageRepository(ctrl), observability.NewChatMetrics())
	participantRepository.EXPECT().ListAll().Return(nil, fmt.Errorf("db closed"))

	_, err := svc.Sweep(context.Background(), time.Now(), staleThreshold)
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}

func TestPresenceService_Sweep_HeartbeatWinsRace(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	participantRepository := mocks.NewMockIParticipantRepository(ctrl)
	messageRepository := mocks.NewMockIMessageRepository(ctrl)
	svc := NewPresenceService(slog.Default(), participantRepository, messageRepository, observability.NewChatMetrics())

	now := time.Now()
	participantRepository.EXPECT().ListAll().Return([]domain.Participant{
		{Name: "Alice", LastSeen: now.Add(-time.Minute)},
	}, nil)
	// The record was refreshed between listing and deletion
	participantRepository.EXPECT().DeleteIfIdle("Alice", gomock.Any()).Return(false, nil)
	messageRepository.EXPECT().Append(gomock.Any()).Times(0)

	report, err := svc.Sweep(context.Background(), now, staleThreshold)
	req.NoError(err)
	req.Empty(report.Evicted)
	req.Empty(report.Failed)
}

// reRegisteringRepository lets a new session of the same name register right
// after the sweep deleted the old record.
type reRegisteringRepository struct {
	*repositories.ParticipantRepository
	afterDelete func(name string)
}

func (r *reRegisteringRepository) DeleteIfIdle(name string, cutoff time.Time) (bool, error) {
	deleted, err := r.ParticipantRepository.DeleteIfIdle(name, cutoff)
	if deleted && r.afterDelete != nil {
		r.afterDelete(name)
	}
	return deleted, err
}

func TestPresenceService_Sweep_ReRegistrationDuringEviction(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	req.NoError(h.presence.Register(ctx, "Alice"))
	h.clock.Advance(staleThreshold + time.Second)

	repository := &reRegisteringRepository{
		ParticipantRepository: h.participants,
		afterDelete: func(name string) {
			req.NoError(h.presence.Register(ctx, name))
		},
	}
	sweeper := NewPresenceService(slog.Default(), repository, h.messages, h.metrics).WithClock(h.clock.Now)

	report, err := sweeper.Sweep(ctx, h.clock.Now(), staleThreshold)
	req.NoError(err)
	req.Equal([]string{"Alice"}, report.Evicted)

	// The new session stays registered
	participants, err := h.presence.List(ctx)
	req.NoError(err)
	req.Len(participants, 1)
	req.True(h.clock.Now().Equal(participants[0].LastSeen))

	// Its arrival is stored before the departure of the old session
	messages, err := h.messages.ListAll()
	req.NoError(err)
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Text)
	}
	req.Equal([]string{domain.TextEntered, domain.TextEntered, domain.TextLeft}, texts)
}
