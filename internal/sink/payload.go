package sink

// Payload is the JSON body POSTed to the sink for each relayed message.
// from_user_id is null when the platform reported no sender.
type Payload struct {
	Text         string  `json:"text"`
	ChatID       int64   `json:"chat_id"`
	MessageID    int64   `json:"message_id"`
	FromUserID   *int64  `json:"from_user_id"`
	FromUsername string  `json:"from_user_username"`
	ChatTitle    string  `json:"chat_title"`
	Timestamp    float64 `json:"timestamp"` // seconds since epoch, fractional
}
