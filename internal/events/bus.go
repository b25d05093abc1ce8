// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Post after Shutdown.
var ErrBusClosed = errors.New("event bus is shut down")

// MessageType routes messages to subscribers.
type MessageType string

const (
	// TypeRunReport carries a schemas.RunReport, once per run.
	TypeRunReport MessageType = "run_report"
	// TypePickResult carries a schemas.PickResult, once per pick.
	TypePickResult MessageType = "pick_result"
)

// Message is the envelope delivered to subscribers.
type Message struct {
	ID        string
	Timestamp time.Time
	Type      MessageType
	Payload   interface{}
}

// Publisher is the producer side of the bus.
type Publisher interface {
	Post(ctx context.Context, msgType MessageType, payload interface{}) error
}

// Bus is a small in-process pub/sub used to report run and pick outcomes to
// whoever is driving the session (CLI command, control loop, tests).
type Bus struct {
	logger *zap.Logger

	subscribers map[MessageType][]chan Message
	// channels holds every channel handed out, subscribed or not, so
	// Shutdown can drain messages left in unsubscribed buffers.
	channels   map[chan Message]struct{}
	mu         sync.RWMutex
	bufferSize int

	// processingWg tracks delivered but unacknowledged messages.
	processingWg sync.WaitGroup
	// activePostsWg tracks Post calls in flight.
	activePostsWg sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex
}

// NewBus creates a bus whose subscriber channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:       logger.Named("events"),
		subscribers:  make(map[MessageType][]chan Message),
		channels:     make(map[chan Message]struct{}),
		bufferSize:   bufferSize,
		shutdownChan: make(chan struct{}),
	}
}

// Post delivers payload to every subscriber of msgType. It blocks while a
// subscriber's buffer is full, until ctx is done or the bus shuts down.
func (b *Bus) Post(ctx context.Context, msgType MessageType, payload interface{}) error {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return ErrBusClosed
	}
	b.activePostsWg.Add(1)
	b.shutdownMu.Unlock()
	defer b.activePostsWg.Done()

	msg := Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      msgType,
		Payload:   payload,
	}
	b.logger.Debug("Posting message", zap.String("type", string(msg.Type)), zap.String("id", msg.ID))

	b.mu.RLock()
	subs := b.subscribers[msgType]
	if len(subs) == 0 {
		b.mu.RUnlock()
		return nil
	}
	targets := make([]chan Message, len(subs))
	copy(targets, subs)
	b.mu.RUnlock()

	for _, ch := range targets {
		b.processingWg.Add(1)
		select {
		case ch <- msg:
		case <-ctx.Done():
			b.processingWg.Done()
			return ctx.Err()
		case <-b.shutdownChan:
			b.processingWg.Done()
			return ErrBusClosed
		}
	}
	return nil
}

// Subscribe returns a channel receiving the given message types and a func
// that removes the subscription. Consumers call Acknowledge per message.
func (b *Bus) Subscribe(msgTypes ...MessageType) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed() || len(msgTypes) == 0 {
		closed := make(chan Message)
		close(closed)
		return closed, func() {}
	}

	ch := make(chan Message, b.bufferSize)
	b.channels[ch] = struct{}{}
	types := append([]MessageType(nil), msgTypes...)
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range types {
			subs := b.subscribers[t]
			for i, sub := range subs {
				if sub == ch {
					b.subscribers[t] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subscribers[t]) == 0 {
				delete(b.subscribers, t)
			}
		}
		// The channel is closed by Shutdown, never here.
	}
	return ch, unsubscribe
}

// Acknowledge marks a received message as processed.
func (b *Bus) Acknowledge(Message) {
	b.processingWg.Done()
}

// Shutdown stops accepting posts, closes every subscriber channel, drains
// what was never read and waits for outstanding acknowledgements.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.shutdownMu.Lock()
		b.isShutdown = true
		b.shutdownMu.Unlock()

		close(b.shutdownChan)
		b.activePostsWg.Wait()

		b.mu.Lock()
		for ch := range b.channels {
			close(ch)
		}
		drained := 0
		for ch := range b.channels {
			for range ch {
				drained++
				b.processingWg.Done()
			}
		}
		b.subscribers = make(map[MessageType][]chan Message)
		b.channels = make(map[chan Message]struct{})
		b.mu.Unlock()

		if drained > 0 {
			b.logger.Debug("Drained unread messages during shutdown.", zap.Int("count", drained))
		}
		b.processingWg.Wait()
		b.logger.Debug("Event bus shut down.")
	})
}

func (b *Bus) isClosed() bool {
	b.shutdownMu.Lock()
	defer b.shutdownMu.Unlock()
	return b.isShutdown
}
