package services

import (
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/observability"
	"chat-room/repositories"
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

type IMessageService interface {
	Send(ctx context.Context, sender string, request SendRequest) error
	ListVisible(ctx context.Context, viewer string, limit *int) ([]domain.Message, error)
}

type MessageService struct {
	log          *slog.Logger
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	metrics      *observability.ChatMetrics
	now          func() time.Time
}

func NewMessageService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	metrics *observability.ChatMetrics,
) *MessageService {
	return &MessageService{
		log:          log,
		participants: participants,
		messages:     messages,
		metrics:      metrics,
		now:          time.Now,
	}
}

func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.now = now
	return s
}

// Send checks the sender is in the room before looking at the payload,
// then appends the message. Status messages can't be sent by participants.
func (s *MessageService) Send(ctx context.Context, sender string, request SendRequest) error {
	if sender == "" {
		return errors.ErrSenderNotRegistered
	}
	_, ok, err := s.participants.Find(sender)
	if err != nil {
		return errors.StoreUnavailable("find sender", err)
	}
	if !ok {
		return errors.ErrSenderNotRegistered
	}
	if verr := validateStruct(request); verr != nil {
		return verr
	}

	message := domain.NewMessage(sender, request.To, request.Text, request.Type, s.now())
	if err = s.messages.Append(message); err != nil {
		return errors.StoreUnavailable("append message", err)
	}
	s.metrics.MessagesSent.WithLabelValues(string(request.Type)).Inc()
	s.log.DebugContext(ctx, "Message sent", "from", sender, "to", request.To, "type", request.Type)
	return nil
}

// ListVisible returns what viewer may read, oldest first.
// With a limit the visible list is reversed and its last limit entries are
// returned as they are: [m1 m2 m3 m4 m5] with limit 2 gives [m2 m1].
// Existing clients depend on that shape.
func (s *MessageService) ListVisible(_ context.Context, viewer string, limit *int) ([]domain.Message, error) {
	verr := validateStruct(listRequest{User: viewer})
	if limit != nil && *limit < 1 {
		if verr == nil {
			verr = &errors.ValidationError{}
		}
		verr.Add("limit", `"limit" must be greater than or equal to 1`)
	}
	if verr != nil {
		return nil, verr
	}

	messages, err := s.messages.ListAll()
	if err != nil {
		return nil, errors.StoreUnavailable("list messages", err)
	}
	visible := lo.Filter(messages, func(m domain.Message, _ int) bool {
		return m.VisibleTo(viewer)
	})
	if limit == nil {
		return visible, nil
	}
	return lastOfReversed(visible, *limit), nil
}

func lastOfReversed(messages []domain.Message, limit int) []domain.Message {
	reversed := lo.Reverse(messages)
	return lo.Drop(reversed, max(len(reversed)-limit, 0))
}
