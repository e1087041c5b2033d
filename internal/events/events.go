package events

import "time"

// Event names published to the platform topic.
const (
	EventAttemptStarted   = "attempt.started"
	EventAttemptSubmitted = "attempt.submitted"
	EventAttemptExpired   = "attempt.expired"

	EventOlympiadPublished = "olympiad.published"
	EventResultsReleased   = "olympiad.results_released"
)

// AttemptEvent is the payload for attempt lifecycle events.
type AttemptEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	OlympiadID uint      `json:"olympiad_id"`
	UserID     uint      `json:"user_id"`
	Status     string    `json:"status"`
	ScoreTotal int       `json:"score_total,omitempty"`
	ScoreMax   int       `json:"score_max,omitempty"`
	Passed     bool      `json:"passed,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OlympiadEvent is the payload for CMS lifecycle events.
type OlympiadEvent struct {
	OlympiadID uint      `json:"olympiad_id"`
	ActorID    uint      `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
