package relay

import (
	"github.com/kellybasil185/notification-proxy-server/internal/domain"
	"github.com/kellybasil185/notification-proxy-server/internal/sink"
)

// unknownUser is reported when the platform gave no sender at all.
const unknownUser = "UnknownUser"

// BuildPayload maps a qualifying message to the sink wire format. Pure:
// the caller guarantees the message passed ShouldForward, so there is no
// failure path.
func BuildPayload(msg domain.Message) sink.Payload {
	p := sink.Payload{
		Text:         msg.Text,
		ChatID:       msg.ChatID,
		MessageID:    msg.MessageID,
		FromUsername: unknownUser,
		ChatTitle:    msg.Chat.Title,
		Timestamp:    float64(msg.Time.UnixMicro()) / 1e6,
	}

	if msg.Sender != nil {
		id := msg.Sender.ID
		p.FromUserID = &id
		if msg.Sender.Username != "" {
			p.FromUsername = msg.Sender.Username
		} else {
			p.FromUsername = msg.Sender.DisplayName
		}
	}

	if p.ChatTitle == "" {
		p.ChatTitle = msg.Chat.Kind.Label()
	}

	return p
}
