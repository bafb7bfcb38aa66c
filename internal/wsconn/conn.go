// Package wsconn owns one goroutine per accepted WebSocket connection: a
// read pump feeding frames through a bounded task pool into the protocol
// dispatcher, a select loop multiplexing pool output, event deliveries, and
// the process-wide shutdown signal onto the socket.
package wsconn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/jg-phare/mcslauncherd/internal/auth"
	"github.com/jg-phare/mcslauncherd/internal/events"
	"github.com/jg-phare/mcslauncherd/internal/permission"
	v1 "github.com/jg-phare/mcslauncherd/internal/protocol/v1"
	"github.com/jg-phare/mcslauncherd/internal/taskpool"
)

// shutdownReason is the close reason sent when the daemon is stopping.
const shutdownReason = "daemon closed"

// subscribePermission mirrors the dispatcher's requirement for the event
// actions; the intercept must not grant what the dispatcher would deny.
var subscribePermission = permission.MustNew("event.subscribe")

const writeTimeout = 10 * time.Second

// PoolConfig tunes the per-connection task pool.
type PoolConfig struct {
	MaxWorkers  int
	MaxPending  int
	IdleTimeout time.Duration
}

// Deps bundles what every connection needs.
type Deps struct {
	Dispatcher *v1.Dispatcher
	Events     *events.Bus
	Registry   *Registry
	Pool       PoolConfig
}

type frame struct {
	binary bool
	data   []byte
}

// Conn is one live WebSocket connection.
type Conn struct {
	ID   uint64
	Auth auth.ConnectionContext

	ws   *websocket.Conn
	deps Deps
	sub  *events.Subscription
}

// Serve runs the connection until the socket closes, the pool shuts, or ctx
// (the process-wide shutdown context) is canceled. It registers the
// connection for its lifetime and owns every resource it allocates.
func Serve(ctx context.Context, ws *websocket.Conn, authCtx auth.ConnectionContext, deps Deps) {
	c := &Conn{
		ID:   authCtx.ConnID,
		Auth: authCtx,
		ws:   ws,
		deps: deps,
		sub:  deps.Events.Subscribe(16),
	}
	deps.Registry.add(c)
	defer deps.Registry.remove(c.ID)
	defer c.sub.Close()

	log.Info().Uint64("conn", c.ID).Str("peer", authCtx.PeerAddr).Msg("connection accepted")
	c.run(ctx)
	log.Info().Uint64("conn", c.ID).Msg("connection closed")
}

// process handles one admitted frame on a pool worker.
func (c *Conn) process(f frame) []byte {
	pctx := &v1.Context{Conn: c.Auth}
	if f.binary {
		return c.deps.Dispatcher.HandleBinary(pctx, f.data)
	}
	c.interceptEventActions(f.data)
	return c.deps.Dispatcher.HandleText(pctx, f.data)
}

// interceptEventActions updates the connection's event subscription for
// subscribe/unsubscribe requests before they reach the dispatcher, which
// only acknowledges them.
func (c *Conn) interceptEventActions(raw []byte) {
	var req struct {
		Action string `json:"action"`
		Params struct {
			Event string `json:"event"`
		} `json:"params"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}
	switch req.Action {
	case "subscribe_event", "unsubscribe_event":
	default:
		return
	}
	if !c.Auth.Perms.Matches(subscribePermission) {
		return
	}
	if req.Action == "subscribe_event" {
		c.sub.Add(req.Params.Event)
	} else {
		c.sub.Remove(req.Params.Event)
	}
}

func (c *Conn) run(ctx context.Context) {
	pool := taskpool.New(c.process, c.deps.Pool.MaxWorkers, c.deps.Pool.MaxPending, c.deps.Pool.IdleTimeout)
	defer pool.Drain()

	// Read pump: the only reader of the socket. Closed frames and read
	// errors end it, which the select loop observes as channel closure.
	frames := make(chan frame, 1)
	readCtx, stopRead := context.WithCancel(context.Background())
	defer stopRead()
	go func() {
		defer close(frames)
		for {
			typ, data, err := c.ws.Read(readCtx)
			if err != nil {
				if status := websocket.CloseStatus(err); status != -1 {
					log.Debug().Uint64("conn", c.ID).Int("code", int(status)).Msg("peer closed connection")
				}
				return
			}
			select {
			case frames <- frame{binary: typ == websocket.MessageBinary, data: data}:
			case <-readCtx.Done():
				return
			}
		}
	}()

	eventCh := c.sub.Events()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			switch pool.TrySubmit(f) {
			case taskpool.Admitted:
			case taskpool.Full:
				c.write(v1.RateLimited(f.data, f.binary))
			case taskpool.Closed:
				return
			}

		case out := <-pool.Output():
			if !c.write(out) {
				return
			}

		case ev, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if !c.write(data) {
				return
			}

		case <-ctx.Done():
			c.ws.Close(websocket.StatusNormalClosure, shutdownReason)
			return
		}
	}
}

// write sends one text frame, reporting false when the socket is gone.
func (c *Conn) write(data []byte) bool {
	wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.ws.Write(wctx, websocket.MessageText, data); err != nil {
		log.Debug().Uint64("conn", c.ID).Err(err).Msg("write failed")
		return false
	}
	return true
}
