// Package relay implements the message-relay pipeline: qualification,
// payload construction, and the coordinator that drives both against the
// platform event stream.
package relay

import "github.com/kellybasil185/notification-proxy-server/internal/domain"

// Rejection reasons reported by ShouldForward.
const (
	ReasonOutgoing = "outgoing"
	ReasonNoText   = "no_text"
)

// ShouldForward decides whether a message qualifies for relay. The
// returned reason is non-empty only for rejections. Rules short-circuit
// in order: self-sent messages never relay (prevents feedback loops with
// automation reacting to the sink), then messages without text.
func ShouldForward(msg domain.Message) (bool, string) {
	if msg.Outgoing {
		return false, ReasonOutgoing
	}
	if msg.Text == "" {
		return false, ReasonNoText
	}
	return true, ""
}
