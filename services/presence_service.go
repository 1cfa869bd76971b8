package services

import (
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/observability"
	"chat-room/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type IPresenceService interface {
	Register(ctx context.Context, name string) error
	Heartbeat(ctx context.Context, name string) error
	Sweep(ctx context.Context, now time.Time, threshold time.Duration) (domain.SweepReport, error)
	List(ctx context.Context) ([]domain.Participant, error)
}

// PresenceService owns the liveness of participants.
// It relies on the repository's per-key atomicity instead of a lock of its own,
// so unrelated participants never wait on each other.
type PresenceService struct {
	log          *slog.Logger
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	metrics      *observability.ChatMetrics
	now          func() time.Time
}

func NewPresenceService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	metrics *observability.ChatMetrics,
) *PresenceService {
	return &PresenceService{
		log:          log,
		participants: participants,
		messages:     messages,
		metrics:      metrics,
		now:          time.Now,
	}
}

// WithClock replaces the time source, mostly for tests.
func (s *PresenceService) WithClock(now func() time.Time) *PresenceService {
	s.now = now
	return s
}

// Register creates the participant and records its arrival.
// The two writes are not atomic: a failure after the insert leaves a
// participant without its status message.
func (s *PresenceService) Register(ctx context.Context, name string) error {
	if verr := validateStruct(RegisterRequest{Name: name}); verr != nil {
		return verr
	}
	if domain.IsReservedName(name) {
		return errors.NewValidationError("name", fmt.Sprintf("%q is reserved", name))
	}

	now := s.now()
	err := s.participants.Insert(domain.Participant{Name: name, LastSeen: now})
	if errors.Is(err, repositories.ErrDuplicateKey) {
		return errors.ErrAlreadyExists
	}
	if err != nil {
		return errors.StoreUnavailable("insert participant", err)
	}
	if err = s.messages.Append(domain.NewEnteredMessage(name, now)); err != nil {
		return errors.StoreUnavailable("append entered message", err)
	}

	s.metrics.Registrations.Inc()
	s.log.InfoContext(ctx, "Participant entered the room", "name", name)
	return nil
}

func (s *PresenceService) Heartbeat(ctx context.Context, name string) error {
	if name == "" {
		return errors.ErrNotFound
	}
	err := s.participants.Update(name, s.now())
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return errors.ErrNotFound
	}
	if err != nil {
		return errors.StoreUnavailable("update participant", err)
	}
	s.metrics.Heartbeats.Inc()
	s.log.DebugContext(ctx, "Heartbeat", "name", name)
	return nil
}

// Sweep evicts every participant whose LastSeen is more than threshold before now.
// Each eviction is independent: a failure is recorded in the report and the
// sweep moves on. The conditional delete makes a participant leave at most once,
// even when sweeps overlap or a heartbeat arrives mid-sweep.
func (s *PresenceService) Sweep(ctx context.Context, now time.Time, threshold time.Duration) (domain.SweepReport, error) {
	report := domain.SweepReport{Evicted: []string{}, Failed: map[string]error{}}
	start := time.Now()
	defer func() {
		s.metrics.Sweeps.Inc()
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	participants, err := s.participants.ListAll()
	if err != nil {
		return report, errors.StoreUnavailable("list participants", err)
	}

	cutoff := now.Add(-threshold)
	for _, participant := range participants {
		if !participant.IsIdle(now, threshold) {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		evicted, err := s.evict(participant.Name, cutoff)
		if err != nil {
			s.metrics.EvictionFailures.Inc()
			s.log.WarnContext(ctx, "Eviction failed", "name", participant.Name, "error", err)
			report.Failed[participant.Name] = err
			continue
		}
		if evicted {
			s.metrics.Evictions.Inc()
			s.log.InfoContext(ctx, "Participant left the room", "name", participant.Name,
				"idle", now.Sub(participant.LastSeen).String())
			report.Evicted = append(report.Evicted, participant.Name)
		}
	}
	return report, nil
}

// evict deletes the record first and announces the departure after, so only a
// participant that was really removed is announced. The two writes are separate:
// if the same name registers again in between, its "entered the room" message is
// stored before the "left the room" one of the previous session.
func (s *PresenceService) evict(name string, cutoff time.Time) (bool, error) {
	deleted, err := s.participants.DeleteIfIdle(name, cutoff)
	if err != nil {
		return false, errors.StoreUnavailable("delete participant", err)
	}
	if !deleted {
		return false, nil
	}
	if err = s.messages.Append(domain.NewLeftMessage(name, s.now())); err != nil {
		return false, errors.StoreUnavailable("append left message", err)
	}
	return true, nil
}

func (s *PresenceService) List(_ context.Context) ([]domain.Participant, error) {
	participants, err := s.participants.ListAll()
	if err != nil {
		return nil, errors.StoreUnavailable("list participants", err)
	}
	return participants, nil
}
