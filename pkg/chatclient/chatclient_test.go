package chatclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echo-chat/backend/internal/db"
	"github.com/echo-chat/backend/internal/repository"
	"github.com/echo-chat/backend/internal/transport"
	"github.com/echo-chat/backend/internal/ws"
)

// manualOpener hands out handles whose events the test fires directly.
type manualOpener struct {
	mu  sync.Mutex
	obs transport.Observer
}

func (o *manualOpener) Open(address string, obs transport.Observer) (transport.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = obs
	return nopHandle{}, nil
}

func (o *manualOpener) observer() transport.Observer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.obs
}

type nopHandle struct{}

func (nopHandle) Send(string) error { return nil }
func (nopHandle) Close(int)         {}
func (nopHandle) Detach()           {}

func newServer(t *testing.T) string {
	t.Helper()
	testDB, err := db.NewTestDB()
	require.NoError(t, err)

	svc := ws.NewService(repository.NewMessageRepository(testDB), 5, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.Handler().HandleConnection(w, r)
	}))
	t.Cleanup(func() {
		svc.Close()
		srv.Close()
		testDB.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_SayAndHistory(t *testing.T) {
	url := newServer(t)
	c := New(url, Config{Logger: zerolog.Nop()})
	defer c.Close()

	var mu sync.Mutex
	var states []State
	var results []Result
	c.Start(context.Background(), Handlers{
		OnStatus: func(s Status) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		},
		OnResult: func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})

	require.Eventually(t, func() bool { return c.Status().State == StateOpen }, 5*time.Second, 10*time.Millisecond)

	require.True(t, c.Say("abc"))
	require.True(t, c.RequestHistory())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, RouteMessage, results[0].Kind)
	assert.Equal(t, "cba", results[0].Message.Text)
	assert.Equal(t, RouteHistory, results[1].Kind)
	assert.Equal(t, []string{"abc"}, results[1].History)
	assert.Contains(t, states, StateConnecting)
	assert.Contains(t, states, StateOpen)
	mu.Unlock()

	assert.Len(t, c.Router.Messages(), 2)

	c.Close()
	assert.Equal(t, StateIdle, c.Status().State)
	assert.False(t, c.Say("late"))
}

func TestClient_SayBeforeOpen(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", Config{Logger: zerolog.Nop()})
	defer c.Close()

	assert.False(t, c.Say("hello"))
	assert.Empty(t, c.Router.Messages())
	assert.Equal(t, "Cannot send message: No connection to server", c.Status().Error)
}

func TestClient_CloseWithoutStart(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", Config{Logger: zerolog.Nop()})
	c.Close()
	c.Close()
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestClient_SlowHandlerLosesNoFrames(t *testing.T) {
	opener := &manualOpener{}
	c := New("ws://chat.test/ws", Config{Opener: opener, LiveCapacity: 1000, Logger: zerolog.Nop()})
	defer c.Close()

	gate := make(chan struct{})
	var mu sync.Mutex
	var texts []string
	c.Start(context.Background(), Handlers{
		OnResult: func(r Result) {
			<-gate
			mu.Lock()
			texts = append(texts, r.Message.Text)
			mu.Unlock()
		},
	})

	require.Eventually(t, func() bool { return opener.observer() != nil }, time.Second, time.Millisecond)
	obs := opener.observer()
	obs.Opened()

	// The handler is stuck while the burst arrives.
	const burst = 300
	for i := 0; i < burst; i++ {
		obs.Message([]byte(fmt.Sprintf("m%d", i)))
	}
	close(gate)
	obs.Message([]byte("last"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(texts) == burst+1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < burst; i++ {
		assert.Equal(t, fmt.Sprintf("m%d", i), texts[i])
	}
	assert.Equal(t, "last", texts[burst])
	assert.Len(t, c.Router.Messages(), burst+1)
	assert.Equal(t, StateOpen, c.Status().State)
}
