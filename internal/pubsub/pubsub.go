// Package pubsub provides a generic asynchronous publish/subscribe broker.
// It backs the streaming side of the event field and the log tail: consumers
// that want a channel feed instead of synchronous dispatch subscribe here.
package pubsub

import (
	"context"
	"time"
)

// Topic labels the kind of notification being broadcast.
type Topic string

const (
	TopicPublished Topic = "published"
	TopicChanged   Topic = "changed"
	TopicRemoved   Topic = "removed"
)

// Notification wraps a typed payload with its topic and broadcast time.
type Notification[T any] struct {
	Topic     Topic
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for notifications.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Notification[T]
}

// Publisher broadcasts notifications with a typed payload.
type Publisher[T any] interface {
	Publish(topic Topic, payload T)
}
