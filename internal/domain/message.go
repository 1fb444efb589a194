package domain

import "time"

// ChatKind classifies the conversation a message arrived in.
type ChatKind int

const (
	ChatUnknown ChatKind = iota
	ChatPrivate
	ChatGroup
	ChatChannel
)

// Label returns the human-readable name used when a chat has no title.
func (k ChatKind) Label() string {
	switch k {
	case ChatPrivate:
		return "PrivateChat"
	case ChatGroup:
		return "Group"
	case ChatChannel:
		return "Channel"
	default:
		return "Unknown"
	}
}

// Sender identifies the account that authored a message.
type Sender struct {
	ID          int64
	Username    string
	DisplayName string
}

// Chat describes the conversation a message belongs to.
type Chat struct {
	Title string
	Kind  ChatKind
}

// Message is one incoming message notification from the platform.
// Constructed by the platform adapter per event and read-only thereafter.
type Message struct {
	ChatID    int64
	MessageID int64
	Text      string
	Time      time.Time
	Outgoing  bool // authored by the authenticated account itself
	Sender    *Sender
	Chat      Chat
}
