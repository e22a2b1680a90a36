package messages

import "time"

// Message is an ingested inbound message. Rows are created exactly once per
// message_id and never updated.
type Message struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Ts        time.Time `json:"ts"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"-"`
}

type ListFilter struct {
	From      string
	Since     time.Time
	TextQuery string
	Limit     int
	Offset    int
}

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTs    *time.Time    `json:"first_message_ts"`
	LastMessageTs     *time.Time    `json:"last_message_ts"`
}
