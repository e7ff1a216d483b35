// Package bus layers version-filtered subscription and request/response
// semantics on top of the event field. All cross-module communication flows
// through here; modules never call each other's methods directly.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/log"
)

// DefaultRequestTimeout bounds how long Request waits for a response when
// the caller supplies no deadline of its own.
const DefaultRequestTimeout = 5 * time.Second

// Metadata keys used by the request/response protocol.
const (
	MetaVersion   = "version"
	MetaIsRequest = "isRequest"
	MetaRequestID = "requestId"
)

// Essence labels stamped on response events.
const (
	LabelResponseSuccess = "response:success"
	LabelResponseError   = "response:error"
)

// ErrRequestTimeout is wrapped into the error returned when a request sees
// no response before its deadline.
var ErrRequestTimeout = errors.New("request timed out")

// Bus wraps a field with versioned subscriptions and request/response.
type Bus struct {
	field          *field.Field
	requestTimeout time.Duration
}

// Option configures a Bus.
type Option func(*Bus)

// WithRequestTimeout overrides the default request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.requestTimeout = d
		}
	}
}

// New creates a bus over the given field.
func New(f *field.Field, opts ...Option) *Bus {
	b := &Bus{field: f, requestTimeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Field exposes the underlying event field.
func (b *Bus) Field() *field.Field {
	return b.field
}

// Publish forwards an event to the field.
func (b *Bus) Publish(evt field.Event) {
	b.field.Publish(evt)
}

// Subscribe forwards a plain pattern subscription to the field.
func (b *Bus) Subscribe(pattern string, handler field.Handler) func() {
	return b.field.Subscribe(pattern, handler)
}

// SubscribeVersion registers a handler invoked only for events whose
// metadata version satisfies the semver constraint. Events without a version
// are treated as "0.0.0", which any real constraint excludes. Events whose
// version fails to parse are skipped with a warning.
func (b *Bus) SubscribeVersion(pattern, constraint string, handler field.Handler) (func(), error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("parse version constraint %q: %w", constraint, err)
	}

	unsub := b.field.Subscribe(pattern, func(evt field.Event) {
		raw := evt.MetaString(MetaVersion)
		if raw == "" {
			raw = "0.0.0"
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			log.Warn(log.CatBus, "skipping event with unparseable version",
				"eventType", evt.Type, "version", raw)
			return
		}
		if c.Check(v) {
			handler(evt)
		}
	})
	return unsub, nil
}

// Request publishes a request event and waits for the correlated response.
// The response event type is "<type>:response:<requestId>". Exactly one of
// the return paths fires: the response event, or an error when ctx is done
// or the timeout elapses first. The losing path unsubscribes.
//
// A response essence-labeled "response:error" is returned together with an
// error carrying the handler's message.
func (b *Bus) Request(ctx context.Context, eventType string, payload map[string]any) (field.Event, error) {
	requestID := uuid.NewString()
	responseType := fmt.Sprintf("%s:response:%s", eventType, requestID)

	respCh := make(chan field.Event, 1)
	unsub := b.field.Subscribe(responseType, func(evt field.Event) {
		select {
		case respCh <- evt:
		default:
			// A duplicate response; the first one already won.
		}
	})
	defer unsub()

	b.field.Publish(field.Event{
		Type:     eventType,
		SourceID: "bus:request",
		Payload:  payload,
		Metadata: map[string]any{
			MetaIsRequest: true,
			MetaRequestID: requestID,
		},
		EssenceLabels: []string{"bus:request"},
	})

	timer := time.NewTimer(b.requestTimeout)
	defer timer.Stop()

	select {
	case evt := <-respCh:
		if hasLabel(evt.EssenceLabels, LabelResponseError) {
			msg, _ := evt.Payload["error"].(string)
			return evt, fmt.Errorf("request %s failed: %s", eventType, msg)
		}
		return evt, nil
	case <-ctx.Done():
		return field.Event{}, fmt.Errorf("request %s cancelled: %w", eventType, ctx.Err())
	case <-timer.C:
		return field.Event{}, fmt.Errorf("no response to %s within %s: %w",
			eventType, b.requestTimeout, ErrRequestTimeout)
	}
}

// RequestHandler processes a request payload and returns the response
// payload, or an error that is surfaced to the requester.
type RequestHandler func(payload map[string]any, metadata map[string]any) (map[string]any, error)

// HandleRequests serves every request event matching pattern. Each request
// receives exactly one response: success carries the handler's payload,
// failure (error or panic) carries the error message. Non-request events on
// the pattern are ignored. Returns an unsubscribe function.
func (b *Bus) HandleRequests(pattern string, handler RequestHandler) func() {
	return b.field.Subscribe(pattern, func(evt field.Event) {
		if !evt.MetaBool(MetaIsRequest) {
			return
		}
		requestID := evt.MetaString(MetaRequestID)
		if requestID == "" {
			log.Warn(log.CatBus, "request event without requestId", "eventType", evt.Type)
			return
		}

		responseType := fmt.Sprintf("%s:response:%s", evt.Type, requestID)

		result, err := b.invokeHandler(handler, evt)
		if err != nil {
			log.ErrorErr(log.CatBus, "request handler failed", err,
				"eventType", evt.Type, "requestId", requestID)
			b.field.Publish(field.Event{
				Type:          responseType,
				SourceID:      "bus:responder",
				Payload:       map[string]any{"error": err.Error()},
				Metadata:      map[string]any{MetaRequestID: requestID},
				EssenceLabels: []string{LabelResponseError},
			})
			return
		}

		b.field.Publish(field.Event{
			Type:          responseType,
			SourceID:      "bus:responder",
			Payload:       result,
			Metadata:      map[string]any{MetaRequestID: requestID},
			EssenceLabels: []string{LabelResponseSuccess},
		})
	})
}

// invokeHandler shields the responder from handler panics so a request still
// gets its one response.
func (b *Bus) invokeHandler(handler RequestHandler, evt field.Event) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request handler panic: %v", r)
		}
	}()
	return handler(evt.Payload, evt.Metadata)
}

func hasLabel(ls []string, want string) bool {
	for _, l := range ls {
		if l == want {
			return true
		}
	}
	return false
}
