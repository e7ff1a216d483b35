package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akasha-systems/akasha/internal/field"
)

func newBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	f := field.New(100)
	t.Cleanup(f.Close)
	return New(f, opts...)
}

func TestSubscribeVersion_FiltersByConstraint(t *testing.T) {
	b := newBus(t)

	var got []string
	unsub, err := b.SubscribeVersion("frequency:*", ">=1.0.0", func(e field.Event) {
		got = append(got, e.MetaString(MetaVersion))
	})
	require.NoError(t, err)
	defer unsub()

	publish := func(version string) {
		md := map[string]any{}
		if version != "" {
			md[MetaVersion] = version
		}
		b.Publish(field.Event{Type: "frequency:shift", Metadata: md})
	}

	publish("1.2.0")
	publish("0.9.0")
	publish("") // defaults to 0.0.0, excluded by any real constraint
	publish("2.0.0")
	publish("not-a-version") // skipped with a warning

	require.Equal(t, []string{"1.2.0", "2.0.0"}, got)
}

func TestSubscribeVersion_BadConstraint(t *testing.T) {
	b := newBus(t)
	_, err := b.SubscribeVersion("frequency:*", ">>=1", func(field.Event) {})
	require.Error(t, err)
}

func TestRequest_ResolvesOnResponse(t *testing.T) {
	b := newBus(t)

	unsub := b.HandleRequests("archetype:lookup", func(payload, metadata map[string]any) (map[string]any, error) {
		name, _ := payload["name"].(string)
		return map[string]any{"archetype": "the-" + name}, nil
	})
	defer unsub()

	resp, err := b.Request(context.Background(), "archetype:lookup", map[string]any{"name": "seeker"})
	require.NoError(t, err)
	require.Equal(t, "the-seeker", resp.Payload["archetype"])
	require.Contains(t, resp.EssenceLabels, LabelResponseSuccess)
}

func TestRequest_HandlerErrorSurfaces(t *testing.T) {
	b := newBus(t)

	unsub := b.HandleRequests("archetype:lookup", func(payload, metadata map[string]any) (map[string]any, error) {
		return nil, errors.New("archive unavailable")
	})
	defer unsub()

	resp, err := b.Request(context.Background(), "archetype:lookup", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "archive unavailable")
	require.Contains(t, resp.EssenceLabels, LabelResponseError)
}

func TestRequest_HandlerPanicStillResponds(t *testing.T) {
	b := newBus(t, WithRequestTimeout(200*time.Millisecond))

	unsub := b.HandleRequests("archetype:lookup", func(payload, metadata map[string]any) (map[string]any, error) {
		panic("lost in the field")
	})
	defer unsub()

	_, err := b.Request(context.Background(), "archetype:lookup", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "lost in the field")
	require.NotErrorIs(t, err, ErrRequestTimeout)
}

func TestRequest_TimesOutWithoutResponder(t *testing.T) {
	b := newBus(t, WithRequestTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := b.Request(context.Background(), "nobody:home", nil)
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.Less(t, time.Since(start), time.Second)

	// The losing path unsubscribed its one-shot response listener.
	require.Equal(t, 0, b.Field().SubscriberCount())
}

func TestRequest_ContextCancellation(t *testing.T) {
	b := newBus(t, WithRequestTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Request(ctx, "nobody:home", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHandleRequests_ExactlyOneResponsePerRequest(t *testing.T) {
	b := newBus(t)

	var responses int
	b.Subscribe("census:count:response:*", func(field.Event) { responses++ })

	calls := 0
	unsub := b.HandleRequests("census:count", func(payload, metadata map[string]any) (map[string]any, error) {
		calls++
		return map[string]any{"n": calls}, nil
	})
	defer unsub()

	for i := 0; i < 3; i++ {
		_, err := b.Request(context.Background(), "census:count", nil)
		require.NoError(t, err)
	}

	require.Equal(t, 3, calls)
	require.Equal(t, 3, responses)
}

func TestHandleRequests_IgnoresNonRequestTraffic(t *testing.T) {
	b := newBus(t)

	calls := 0
	unsub := b.HandleRequests("census:count", func(payload, metadata map[string]any) (map[string]any, error) {
		calls++
		return nil, nil
	})
	defer unsub()

	b.Publish(field.Event{Type: "census:count"}) // not flagged isRequest
	require.Equal(t, 0, calls)
}

func TestRequest_ConcurrentRequestsCorrelate(t *testing.T) {
	b := newBus(t)

	unsub := b.HandleRequests("echo", func(payload, metadata map[string]any) (map[string]any, error) {
		return payload, nil
	})
	defer unsub()

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		i := i
		go func() {
			resp, err := b.Request(context.Background(), "echo", map[string]any{"i": i})
			if err == nil && resp.Payload["i"] != i {
				err = fmt.Errorf("crossed wires: sent %d got %v", i, resp.Payload["i"])
			}
			errs <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-errs)
	}
}
