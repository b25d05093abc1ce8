package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/events"
)

// maxCommandSize bounds a single command line.
const maxCommandSize = 1 << 20

// Subscriber is the consumer side of the event bus.
type Subscriber interface {
	Subscribe(msgTypes ...events.MessageType) (<-chan events.Message, func())
	Acknowledge(msg events.Message)
}

// Serve reads one JSON command per line from r and writes one JSON event per
// line to w until r is exhausted or ctx is done. Commands are handled in
// order; events are written as the bus delivers them. When input ends, runs
// and picks started by commands are stopped and their final events written
// before Serve returns.
func Serve(ctx context.Context, d *Dispatcher, bus Subscriber, r io.Reader, w io.Writer) error {
	out := &eventWriter{enc: json.NewEncoder(w)}

	// Subscribe before the first command so no outcome is missed.
	msgs, unsubscribe := bus.Subscribe(events.TypeRunReport, events.TypePickResult)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)

	// Activities started by commands live until input ends or ctx is done.
	activityCtx, endActivities := context.WithCancel(gctx)
	defer endActivities()
	quiesced := make(chan struct{})

	// A Read blocked on r cannot be interrupted, so the scanner runs outside
	// the group and exits once r returns.
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	stopScan := make(chan struct{})
	defer close(stopScan)
	go scanLines(r, lines, readErr, stopScan)

	g.Go(func() error {
		defer close(quiesced)
		err := handleCommands(activityCtx, d, lines, readErr, out)
		endActivities()
		d.quiesce()
		return err
	})

	g.Go(func() error {
		for {
			select {
			case <-quiesced:
				return drain(bus, msgs, out)
			case msg, ok := <-msgs:
				if !ok {
					return nil
				}
				if err := forward(bus, msg, out); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

// drain writes the events already delivered to msgs.
func drain(bus Subscriber, msgs <-chan events.Message, out *eventWriter) error {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := forward(bus, msg, out); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func forward(bus Subscriber, msg events.Message, out *eventWriter) error {
	ev, known := eventFor(msg)
	bus.Acknowledge(msg)
	if !known {
		return nil
	}
	return out.write(ev)
}

// scanLines sends each non-empty line of r on lines, then the scan error on
// readErr, and closes lines.
func scanLines(r io.Reader, lines chan<- []byte, readErr chan<- error, stop <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCommandSize)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-stop:
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		readErr <- fmt.Errorf("failed to read commands: %w", err)
	}
}

func handleCommands(ctx context.Context, d *Dispatcher, lines <-chan []byte, readErr <-chan error, out *eventWriter) error {
	for {
		var line []byte
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		var cmd schemas.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			d.logger.Warn("Malformed command.", zap.ByteString("line", line), zap.Error(err))
			if werr := out.write(schemas.Event{Action: schemas.EventError, Error: fmt.Sprintf("malformed command: %v", err)}); werr != nil {
				return werr
			}
			continue
		}

		if err := d.Handle(ctx, cmd); err != nil {
			d.logger.Warn("Command rejected.", zap.String("action", string(cmd.Action)), zap.Error(err))
			if werr := out.write(schemas.Event{Action: schemas.EventError, Error: err.Error()}); werr != nil {
				return werr
			}
		}
	}
}

// eventFor maps a bus message to its protocol event.
func eventFor(msg events.Message) (schemas.Event, bool) {
	switch payload := msg.Payload.(type) {
	case schemas.RunReport:
		return schemas.EventForOutcome(payload), true
	case schemas.PickResult:
		if payload.Cancelled {
			return schemas.Event{Action: schemas.EventPickCancelled}, true
		}
		return schemas.Event{Action: schemas.EventSelectorPicked, Selector: payload.Selector}, true
	default:
		return schemas.Event{}, false
	}
}

// eventWriter serializes writes from the reader and the event pump.
type eventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (e *eventWriter) write(ev schemas.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
