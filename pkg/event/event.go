// Package event turns raw gateway notifications into the canonical Event the
// robots dispatch on.
//
// Normalize is a pure function: it never logs, never mutates shared state and
// returns identical values for identical input.
package event

import "github.com/keepmind9/cqbot/pkg/constants"

// Kind classifies a canonical event
type Kind int

const (
	Unknown Kind = iota
	GroupMessage
	PrivateMessage
	Notice
)

// String returns the event bus name of the kind
func (k Kind) String() string {
	switch k {
	case GroupMessage:
		return constants.EventGroup
	case PrivateMessage:
		return constants.EventPrivate
	case Notice:
		return constants.EventNotice
	default:
		return ""
	}
}

// IsMessage reports whether k carries a sender and text
func (k Kind) IsMessage() bool {
	return k == GroupMessage || k == PrivateMessage
}

// Sender is the best-effort display info of the message author
type Sender struct {
	Card     string // group card, group messages only
	Nickname string
}

// Event is the normalized form of one inbound notification
type Event struct {
	Kind  Kind
	Valid bool

	RobotID       int64 // account the gateway delivered the event to
	FromUser      int64 // 0 for notices
	FromGroup     int64 // group messages only
	RawText       string
	MentionsRobot bool
	Sender        Sender

	MessageID int64
	SubType   string // message sub type (friend, normal, anonymous ...)
	Time      int64

	NoticeType    string
	NoticeSubType string
	OperatorID    int64
	TargetUserID  int64
	TargetGroupID int64

	// Raw is the sanitized JSON document the event was built from
	Raw []byte
}

// IsSelfEcho reports whether the event was sent by the receiving account itself
func (e Event) IsSelfEcho() bool {
	return e.FromUser != 0 && e.FromUser == e.RobotID
}

// Dispatchable reports whether the event should reach any robot
func (e Event) Dispatchable() bool {
	return e.Valid && e.Kind != Unknown && !e.IsSelfEcho()
}
