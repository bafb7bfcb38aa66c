package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/jg-phare/mcslauncherd/internal/auth"
	"github.com/jg-phare/mcslauncherd/internal/events"
	"github.com/jg-phare/mcslauncherd/internal/permission"
	v1 "github.com/jg-phare/mcslauncherd/internal/protocol/v1"
	"github.com/jg-phare/mcslauncherd/internal/retcode"
)

// startServer upgrades every request and serves it with the given
// dispatcher/pool config under shutdownCtx.
func startServer(t *testing.T, shutdownCtx context.Context, d *v1.Dispatcher, pool PoolConfig) (*httptest.Server, *Registry) {
	t.Helper()
	reg := NewRegistry()
	deps := Deps{Dispatcher: d, Events: events.NewBus(), Registry: reg, Pool: pool}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		set, _ := permission.NewSet([]string{"**"})
		Serve(shutdownCtx, ws, auth.ConnectionContext{Perms: set, ConnID: reg.NextID()}, deps)
	}))
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	return ws
}

func readResponse(t *testing.T, ws *websocket.Conn) v1.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	var resp v1.Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func pingDispatcher() *v1.Dispatcher {
	d := v1.NewDispatcher()
	d.Register("ping", nil, func(_ *v1.Context, _ json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})
	return d
}

func TestRoundTripPreservesRequestID(t *testing.T) {
	srv, reg := startServer(t, context.Background(), pingDispatcher(), PoolConfig{MaxWorkers: 2, MaxPending: 4, IdleTimeout: time.Second})
	ws := dial(t, srv)
	defer ws.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, ws.Write(context.Background(), websocket.MessageText, []byte(`{"action":"ping","id":"rt-1"}`)))
	resp := readResponse(t, ws)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "rt-1", resp.ID)

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestOverflowGetsRateLimitedWithRequestID(t *testing.T) {
	release := make(chan struct{})
	d := v1.NewDispatcher()
	d.Register("slow", nil, func(_ *v1.Context, _ json.RawMessage) (any, error) {
		<-release
		return map[string]any{}, nil
	})

	srv, _ := startServer(t, context.Background(), d, PoolConfig{MaxWorkers: 1, MaxPending: 1, IdleTimeout: time.Second})
	ws := dial(t, srv)
	defer ws.Close(websocket.StatusNormalClosure, "")

	// With one worker and one pending slot, three in-flight requests
	// guarantee at least one overflows. The blocked ones can't answer, so
	// the first frame back is the rate-limit response; its id must be one
	// of the ids we actually sent.
	sent := map[string]bool{"s-0": true, "s-1": true, "s-2": true}
	for id := range sent {
		require.NoError(t, ws.Write(context.Background(), websocket.MessageText,
			[]byte(`{"action":"slow","id":"`+id+`"}`)))
	}

	resp := readResponse(t, ws)
	require.Equal(t, int(retcode.RateLimitExceeded), resp.RetCode)
	require.Equal(t, "error", resp.Status)
	require.True(t, sent[resp.ID], "rate-limited id %q must echo a sent request", resp.ID)
	close(release)
}

func TestShutdownSendsNormalClose(t *testing.T) {
	shutdownCtx, cancel := context.WithCancel(context.Background())
	srv, reg := startServer(t, shutdownCtx, pingDispatcher(), PoolConfig{MaxWorkers: 1, MaxPending: 1, IdleTimeout: time.Second})
	ws := dial(t, srv)

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	readCtx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer rcancel()
	_, _, err := ws.Read(readCtx)
	require.Error(t, err)
	require.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	var ce websocket.CloseError
	if errors.As(err, &ce) {
		require.Equal(t, shutdownReason, ce.Reason)
	}

	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestConnectionRemovedFromRegistryOnClientClose(t *testing.T) {
	srv, reg := startServer(t, context.Background(), pingDispatcher(), PoolConfig{MaxWorkers: 1, MaxPending: 1, IdleTimeout: time.Second})
	ws := dial(t, srv)
	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEventSubscriptionDeliversPublishedEvents(t *testing.T) {
	bus := events.NewBus()
	reg := NewRegistry()
	deps := Deps{Dispatcher: pingDispatcher(), Events: bus, Registry: reg,
		Pool: PoolConfig{MaxWorkers: 1, MaxPending: 2, IdleTimeout: time.Second}}
	// subscribe_event must be a registered action for the ack to succeed.
	deps.Dispatcher.Register("subscribe_event", nil, func(_ *v1.Context, _ json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		set, _ := permission.NewSet([]string{"**"})
		Serve(context.Background(), ws, auth.ConnectionContext{Perms: set, ConnID: reg.NextID()}, deps)
	}))
	t.Cleanup(srv.Close)

	ws := dial(t, srv)
	defer ws.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, ws.Write(context.Background(), websocket.MessageText,
		[]byte(`{"action":"subscribe_event","params":{"event":"instance_log"},"id":"e1"}`)))
	resp := readResponse(t, ws)
	require.Equal(t, "ok", resp.Status)

	bus.Publish("instance_log", map[string]any{"uuid": "u"}, "a line")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, "instance_log", ev.Name)
}
