package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-tuner/tuner"
)

// EventType names a websocket event.
type EventType string

const (
	EventTuningResult EventType = "tuning-result"
	EventSpectrum     EventType = "spectrum-update"
	EventConfig       EventType = "config-changed"
)

// Event is the envelope written to websocket subscribers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

const (
	writeTimeout = 5 * time.Second
	queueSize    = 32
)

type subscriber struct {
	conn     *websocket.Conn
	ctx      context.Context
	spectrum bool
	// queue is drained by a single writer, so events reach the client in
	// publish order. Closed on unsubscribe.
	queue chan Event
}

func newSubscriber(ctx context.Context, conn *websocket.Conn, withSpectrum bool) *subscriber {
	return &subscriber{
		conn:     conn,
		ctx:      ctx,
		spectrum: withSpectrum,
		queue:    make(chan Event, queueSize),
	}
}

// Broadcaster fans engine output out to websocket subscribers. It
// implements tuner.Publisher.
type Broadcaster struct {
	subscribers map[string]*subscriber
	mutex       sync.RWMutex
	logger      *zerolog.Logger
}

// NewBroadcaster returns a broadcaster without subscribers.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	l := logger.With().Str("component", "tuner-events").Logger()

	return &Broadcaster{
		subscribers: make(map[string]*subscriber),
		logger:      &l,
	}
}

// Subscribe registers conn under id and starts its writer. Spectrum events
// are only sent when withSpectrum is set.
func (b *Broadcaster) Subscribe(ctx context.Context, id string, conn *websocket.Conn, withSpectrum bool) {
	sub := newSubscriber(ctx, conn, withSpectrum)
	b.add(id, sub)

	go b.writeLoop(id, sub)

	b.logger.Info().Str("connectionID", id).Bool("spectrum", withSpectrum).Msg("subscription added")
}

func (b *Broadcaster) add(id string, sub *subscriber) {
	b.mutex.Lock()
	if old, ok := b.subscribers[id]; ok {
		close(old.queue)
	}

	b.subscribers[id] = sub
	n := len(b.subscribers)
	b.mutex.Unlock()

	wsSubscribers.Set(float64(n))
}

// Unsubscribe removes the subscriber registered under id and stops its
// writer.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mutex.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(sub.queue)
	}
	n := len(b.subscribers)
	b.mutex.Unlock()

	if !ok {
		return
	}

	wsSubscribers.Set(float64(n))
	b.logger.Info().Str("connectionID", id).Msg("subscription removed")
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.subscribers)
}

// Publish queues the result for every subscriber and the spectrum for those
// that asked for it. It never waits for slow clients: an event that finds a
// subscriber's queue full is dropped for that subscriber.
func (b *Broadcaster) Publish(res tuner.Result, spec tuner.Spectrum) {
	b.broadcast(Event{Type: EventTuningResult, Data: res}, false)

	if spec.Sequence != 0 {
		b.broadcast(Event{Type: EventSpectrum, Data: spec}, true)
	}
}

// Broadcast queues an arbitrary event for every subscriber.
func (b *Broadcaster) Broadcast(event Event) {
	b.broadcast(event, false)
}

func (b *Broadcaster) broadcast(event Event, spectrumOnly bool) {
	// The read lock keeps Unsubscribe from closing a queue mid-send.
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for id, sub := range b.subscribers {
		if spectrumOnly && !sub.spectrum {
			continue
		}

		b.enqueue(id, sub, event)
	}
}

func (b *Broadcaster) enqueue(id string, sub *subscriber, event Event) {
	select {
	case sub.queue <- event:
	default:
		wsEventsDroppedTotal.Inc()
		b.logger.Debug().Str("connectionID", id).Str("type", string(event.Type)).Msg("subscriber queue full, event dropped")
	}
}

// sendInitialState queues the current state for a new subscriber.
func (b *Broadcaster) sendInitialState(id string, event Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if sub, ok := b.subscribers[id]; ok {
		b.enqueue(id, sub, event)
	}
}

// writeLoop drains the queue of sub until it is closed, the connection
// context ends or a write fails.
func (b *Broadcaster) writeLoop(id string, sub *subscriber) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case event, ok := <-sub.queue:
			if !ok {
				return
			}

			if !b.send(sub, event) {
				b.Unsubscribe(id)
				b.logger.Warn().Str("connectionID", id).Msg("removed failed subscriber")

				return
			}
		}
	}
}

// send writes one event, or reports false if the subscriber is gone.
func (b *Broadcaster) send(sub *subscriber, event Event) bool {
	ctx, cancel := context.WithTimeout(sub.ctx, writeTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, sub.conn, event); err != nil {
		wsSendErrorsTotal.Inc()
		b.logger.Debug().Err(err).Str("type", string(event.Type)).Msg("failed to send event")

		return false
	}

	eventsSentTotal.Inc()

	return true
}
