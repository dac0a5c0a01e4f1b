package events

import (
	"github.com/princekumarofficial/media-service/internal/types"
)

// Publisher forwards job lifecycle events to whoever is waiting on them.
type Publisher interface {
	PublishJobStatus(job types.TranscodingJob, source string)
	PublishMediaFinalized(evt types.MediaFinalizedEvent)
}

// TopicHub is the part of the websocket hub the publisher needs.
type TopicHub interface {
	Publish(topic string, event *types.Event)
	HasSubscribers(topic string) bool
}

// EventPublisher implements the Publisher interface on top of a TopicHub,
// using the job id as the topic.
type EventPublisher struct {
	hub TopicHub
}

func NewEventPublisher(hub TopicHub) *EventPublisher {
	return &EventPublisher{
		hub: hub,
	}
}

// PublishJobStatus sends a normalized status. source is "create", "poll",
// "webhook" or "reconcile".
func (p *EventPublisher) PublishJobStatus(job types.TranscodingJob, source string) {
	if job.ExternalJobID == "" || !p.hub.HasSubscribers(job.ExternalJobID) {
		return
	}

	eventData := &types.JobStatusEvent{
		JobID:        job.ExternalJobID,
		Phase:        job.Phase,
		PlaybackURL:  job.PlaybackURL,
		ThumbnailURL: job.ThumbnailURL,
		ErrorMessage: job.ErrorMessage,
		Source:       source,
	}

	p.hub.Publish(job.ExternalJobID, types.NewEvent(types.EventJobStatus, eventData))
}

// PublishMediaFinalized tells a job's subscribers which row it became.
// Image finalizations carry no job id and are not published.
func (p *EventPublisher) PublishMediaFinalized(evt types.MediaFinalizedEvent) {
	if evt.JobID == "" || !p.hub.HasSubscribers(evt.JobID) {
		return
	}

	p.hub.Publish(evt.JobID, types.NewEvent(types.EventMediaFinalized, &evt))
}

// Discard drops every event. It is used by processes without subscribers.
type Discard struct{}

func (Discard) PublishJobStatus(types.TranscodingJob, string) {}

func (Discard) PublishMediaFinalized(types.MediaFinalizedEvent) {}
