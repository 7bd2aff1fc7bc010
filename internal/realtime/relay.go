package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/metrics"
)

// RelayChannel is the Redis pub/sub channel shared by all instances.
const RelayChannel = "board-events"

type relayEnvelope struct {
	InstanceID string          `json:"instanceId"`
	BoardID    string          `json:"boardId"`
	Except     string          `json:"except,omitempty"`
	Frame      json.RawMessage `json:"frame"`
}

// Relay copies room emissions between server instances over Redis pub/sub.
// Each instance ignores what it published itself. Once stopped it stays
// stopped.
type Relay struct {
	client     *redis.Client
	instanceID string
	outbox     chan relayEnvelope

	stopped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRelay(client *redis.Client, instanceID string, buffer int) *Relay {
	if buffer < 1 {
		buffer = 256
	}
	return &Relay{
		client:     client,
		instanceID: instanceID,
		outbox:     make(chan relayEnvelope, buffer),
		stop:       make(chan struct{}),
	}
}

// Stop disables the relay for the rest of the process: Run returns and
// Publish drops everything. Local delivery is unaffected.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		close(r.stop)
		log.Warn("relay: disabled, cross-instance fan-out stopped")
	})
}

// Publish queues a frame for the other instances. It never blocks; when the
// queue is full the frame is only delivered locally.
func (r *Relay) Publish(boardID, exceptConnID string, frame []byte) {
	if r.stopped.Load() {
		return
	}
	env := relayEnvelope{InstanceID: r.instanceID, BoardID: boardID, Except: exceptConnID, Frame: frame}
	select {
	case r.outbox <- env:
	default:
		metrics.DroppedDeliveries.Inc()
		log.WithField("board", boardID).Warn("relay: outbox full, frame not relayed")
	}
}

// Run publishes queued frames and delivers frames from other instances until
// ctx is done or Stop is called. deliver is usually Hub.Deliver.
func (r *Relay) Run(ctx context.Context, deliver func(boardID, exceptConnID string, frame []byte)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	go r.publishLoop(ctx)
	r.subscribeLoop(ctx, deliver)
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.outbox:
			data, err := json.Marshal(env)
			if err != nil {
				log.WithError(err).Error("relay: encode failed")
				continue
			}
			if err := r.client.Publish(ctx, RelayChannel, data).Err(); err != nil {
				log.WithError(err).WithField("board", env.BoardID).Warn("relay: publish failed")
			}
		}
	}
}

func (r *Relay) subscribeLoop(ctx context.Context, deliver func(boardID, exceptConnID string, frame []byte)) {
	for {
		sub := r.client.Subscribe(ctx, RelayChannel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				r.handle(msg.Payload, deliver)
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.Error("relay: pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func (r *Relay) handle(payload string, deliver func(boardID, exceptConnID string, frame []byte)) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.WithError(err).Warn("relay: unable to parse message")
		return
	}
	if env.InstanceID == r.instanceID || env.BoardID == "" {
		return
	}
	deliver(env.BoardID, env.Except, env.Frame)
}
