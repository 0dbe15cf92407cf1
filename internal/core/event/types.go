package event

type EventType string

const (
	// Terminal job lifecycle events, published once per terminal transition.
	EventVideoCompleted EventType = "video.completed"
	EventVideoError     EventType = "video.error"
)

// Event is the payload published to downstream subscribers. It carries
// enough identifying data to act on without querying back.
type Event struct {
	Type   EventType `json:"type"`
	JobID  string    `json:"job_id"`
	UserID string    `json:"user_id"`
	Error  string    `json:"error,omitempty"`
}
