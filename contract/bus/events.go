package bus

import "time"

// IntegrationEvent represents events destined to external brokers (async). Topic() may guide routing.
type IntegrationEvent interface{ Topic() string }

// TopicQueryAnswered is the default topic for QueryAnswered.
const TopicQueryAnswered = "queries.answered"

// QueryAnswered is published after the bus has answered a query.
type QueryAnswered struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"durationMs"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (QueryAnswered) Topic() string { return TopicQueryAnswered }
