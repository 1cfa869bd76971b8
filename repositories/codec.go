package repositories

import (
	"chat-room/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format so fields can be added later
// without breaking existing databases. Unknown fields are skipped on read.
const (
	participantNameField     protowire.Number = 1
	participantLastSeenField protowire.Number = 2

	messageIDField   protowire.Number = 1
	messageFromField protowire.Number = 2
	messageToField   protowire.Number = 3
	messageTextField protowire.Number = 4
	messageTypeField protowire.Number = 5
	messageTimeField protowire.Number = 6
)

func encodeParticipant(p domain.Participant) []byte {
	var b []byte
	b = appendString(b, participantNameField, p.Name)
	b = protowire.AppendTag(b, participantLastSeenField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.LastSeen.UnixMilli()))
	return b
}

func decodeParticipant(b []byte) (domain.Participant, error) {
	var p domain.Participant
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == participantNameField && typ == protowire.BytesType:
			return consumeString(v, &p.Name)
		case num == participantLastSeenField && typ == protowire.VarintType:
			ms, n := protowire.ConsumeVarint(v)
			if n >= 0 {
				p.LastSeen = time.UnixMilli(int64(ms)).UTC()
			}
			return n
		}
		return protowire.ConsumeFieldValue(num, typ, v)
	})
	if err != nil {
		return domain.Participant{}, fmt.Errorf("decode participant: %w", err)
	}
	return p, nil
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, messageIDField, m.ID.String())
	b = appendString(b, messageFromField, m.From)
	b = appendString(b, messageToField, m.To)
	b = appendString(b, messageTextField, m.Text)
	b = appendString(b, messageTypeField, string(m.Type))
	b = appendString(b, messageTimeField, m.Time)
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var (
		m           domain.Message
		id, msgType string
	)
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, v)
		}
		switch num {
		case messageIDField:
			return consumeString(v, &id)
		case messageFromField:
			return consumeString(v, &m.From)
		case messageToField:
			return consumeString(v, &m.To)
		case messageTextField:
			return consumeString(v, &m.Text)
		case messageTypeField:
			return consumeString(v, &msgType)
		case messageTimeField:
			return consumeString(v, &m.Time)
		}
		return protowire.ConsumeFieldValue(num, typ, v)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message id %q: %w", id, err)
	}
	m.ID = parsedID
	m.Type = domain.MessageType(msgType)
	return m, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func consumeString(b []byte, dst *string) int {
	s, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = s
	}
	return n
}

// consumeFields walks every field of b. fn receives the bytes following the tag
// and returns how many of them it consumed, or a negative protowire error code.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = fn(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
