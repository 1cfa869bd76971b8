// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypePublic  MessageType = "message"
	MessageTypePrivate MessageType = "private_message"
	MessageTypeStatus  MessageType = "status"
)

const (
	TextEntered = "entered the room"
	TextLeft    = "left the room"
)

// TimeLayout is the display format of Message.Time.
const TimeLayout = "15:04:05"

// Message represents an immutable chat event.
// Insertion order in the store is authoritative, Time is display only.
type Message struct {
	ID   uuid.UUID // unique identifier
	From string
	To   string
	Text string
	Type MessageType
	Time string
}

// NewMessage stamps a message with a fresh ID and the display time of at.
func NewMessage(from, to, text string, messageType MessageType, at time.Time) Message {
	return Message{
		ID:   uuid.New(),
		From: from,
		To:   to,
		Text: text,
		Type: messageType,
		Time: at.Format(TimeLayout),
	}
}

// NewEnteredMessage is the status event recorded when name registers.
func NewEnteredMessage(name string, at time.Time) Message {
	return NewMessage(name, Broadcast, TextEntered, MessageTypeStatus, at)
}

// NewLeftMessage is the status event recorded when name is evicted.
func NewLeftMessage(name string, at time.Time) Message {
	return NewMessage(name, Broadcast, TextLeft, MessageTypeStatus, at)
}

// VisibleTo reports whether viewer may read m: broadcasts, messages addressed
// to the viewer and messages the viewer sent.
func (m Message) VisibleTo(viewer string) bool {
	return m.To == Broadcast || m.To == viewer || m.From == viewer
}

// IsSendable reports whether a participant may create a message of this type.
// Status messages are system generated only.
func (t MessageType) IsSendable() bool {
	return t == MessageTypePublic || t == MessageTypePrivate
}
