package types

import "time"

// EventType represents the type of real-time event
type EventType string

const (
	EventJobStatus      EventType = "job.status"
	EventMediaFinalized EventType = "media.finalized"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// JobStatusEvent carries a normalized job status to subscribers of the job.
type JobStatusEvent struct {
	JobID        string `json:"job_id"`
	Phase        Phase  `json:"phase"`
	PlaybackURL  string `json:"playback_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Source       string `json:"source"`
}

type MediaFinalizedEvent struct {
	JobID         string `json:"job_id,omitempty"`
	MediaID       string `json:"media_id"`
	URL           string `json:"url"`
	ThumbURL      string `json:"thumb_url,omitempty"`
	AlreadyExists bool   `json:"already_exists"`
	FinalizedAt   string `json:"finalized_at"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
