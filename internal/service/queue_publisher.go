// Package service holds outbound integrations driven by room changes.
// Publishing never blocks a room operation: events are buffered and sent
// from a background loop, and failures are logged then dropped.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/live-room-coordinator/internal/queue"
    "github.com/iliyamo/live-room-coordinator/internal/room"
)

// channelPublisher is the subset of *amqp.Channel used for publishing.
type channelPublisher interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RoomEventPublisher forwards room events to the room.events queue.  It
// implements room.Observer.
type RoomEventPublisher struct {
    url    string
    log    *zap.Logger
    events chan queue.RoomEvent

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
    // dial opens a publishing channel; replaced in tests.
    dial func() (channelPublisher, error)
}

// NewRoomEventPublisher creates a publisher with a buffer of size events.
// Call Run to start delivery.
func NewRoomEventPublisher(url string, buffer int, log *zap.Logger) *RoomEventPublisher {
    if buffer <= 0 {
        buffer = 256
    }
    if log == nil {
        log = zap.NewNop()
    }
    p := &RoomEventPublisher{url: url, log: log, events: make(chan queue.RoomEvent, buffer)}
    p.dial = p.dialAMQP
    return p
}

// RoomChanged enqueues e.  When the buffer is full the event is dropped.
func (p *RoomEventPublisher) RoomChanged(_ context.Context, e room.Event) {
    select {
    case p.events <- queue.FromRoomEvent(e):
    default:
        p.log.Warn("room event dropped: publish buffer full",
            zap.String("type", string(e.Type)), zap.Uint64("room_id", e.RoomID))
    }
}

// Run delivers buffered events until ctx is cancelled, then closes the
// broker connection.
func (p *RoomEventPublisher) Run(ctx context.Context) {
    defer p.Close()
    for {
        select {
        case <-ctx.Done():
            return
        case ev := <-p.events:
            if err := p.publish(ctx, ev); err != nil {
                p.log.Error("room event publish failed",
                    zap.String("type", ev.Type), zap.Uint64("room_id", ev.RoomID), zap.Error(err))
            }
        }
    }
}

func (p *RoomEventPublisher) publish(ctx context.Context, ev queue.RoomEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }
    ch, err := p.channel()
    if err != nil {
        return err
    }

    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    err = ch.PublishWithContext(pctx, "", queue.RoomEventsQueue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
    if err != nil {
        // force a redial on the next event
        p.reset()
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

func (p *RoomEventPublisher) channel() (channelPublisher, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    return p.dial()
}

// dialAMQP is called with p.mu held.
func (p *RoomEventPublisher) dialAMQP() (channelPublisher, error) {
    p.closeLocked()
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(queue.RoomEventsQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *RoomEventPublisher) reset() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
}

// Close releases the broker connection.  Safe to call more than once.
func (p *RoomEventPublisher) Close() {
    p.reset()
}

func (p *RoomEventPublisher) closeLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}
