package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echo-chat/backend/internal/model"
	"github.com/echo-chat/backend/internal/supervisor"
)

type memRecorder struct {
	inbound  []string
	outbound []string
	err      error
}

func (m *memRecorder) RecordInbound(data []byte) error {
	m.inbound = append(m.inbound, string(data))
	return m.err
}

func (m *memRecorder) RecordOutbound(data []byte) error {
	m.outbound = append(m.outbound, string(data))
	return m.err
}

func TestDecodeHistory(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  []string
		ok    bool
	}{
		{"string array", `["a","b"]`, []string{"a", "b"}, true},
		{"empty array", `[]`, []string{}, true},
		{"mixed array", `["a",1,{"k":"v"}]`, []string{"a", "1", `{"k":"v"}`}, true},
		{"plain text", `olleh`, nil, false},
		{"json object", `{"k":"v"}`, nil, false},
		{"json number", `42`, nil, false},
		{"json string", `"history"`, nil, false},
		{"truncated array", `["a",`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeHistory([]byte(tt.frame))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Scenario E: a history snapshot replaces the panel and later text frames
// only touch the live list.
func TestRouter_HistoryThenMessage(t *testing.T) {
	r := New(10, nil, zerolog.Nop())

	res := r.Route([]byte(`["old"]`))
	assert.Equal(t, KindHistory, res.Kind)

	res = r.Route([]byte(`["first","second"]`))
	assert.Equal(t, KindHistory, res.Kind)
	assert.Equal(t, []string{"first", "second"}, r.History())
	assert.Empty(t, r.Messages())

	res = r.Route([]byte("dlrow olleh"))
	assert.Equal(t, KindMessage, res.Kind)
	assert.Equal(t, model.DirectionReceived, res.Message.Direction)
	assert.Equal(t, "dlrow olleh", res.Message.Text)
	assert.NotEmpty(t, res.Message.ID)

	assert.Equal(t, []string{"first", "second"}, r.History())
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "dlrow olleh", msgs[0].Text)
}

func TestRouter_HistoryIsCopied(t *testing.T) {
	r := New(10, nil, zerolog.Nop())
	res := r.Route([]byte(`["a"]`))

	res.History[0] = "changed"
	got := r.History()
	got[0] = "also changed"

	assert.Equal(t, []string{"a"}, r.History())
}

func TestRouter_RecordSent(t *testing.T) {
	rec := &memRecorder{}
	r := New(2, rec, zerolog.Nop())

	r.RecordSent("one")
	r.Route([]byte("eno"))
	r.RecordSent("two")

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.DirectionReceived, msgs[0].Direction)
	assert.Equal(t, "two", msgs[1].Text)
	assert.Equal(t, model.DirectionSent, msgs[1].Direction)

	assert.Equal(t, []string{"one", "two"}, rec.outbound)
	assert.Equal(t, []string{"eno"}, rec.inbound)
}

func TestRouter_RecorderErrorsIgnored(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	r := New(0, rec, zerolog.Nop())

	res := r.Route([]byte("hi"))
	assert.Equal(t, KindMessage, res.Kind)
	assert.Len(t, r.Messages(), 1)
	assert.Equal(t, DefaultLiveCapacity, r.live.Cap())
}

func TestRouter_Run(t *testing.T) {
	r := New(10, nil, zerolog.Nop())
	events := make(chan supervisor.Event, 4)

	events <- supervisor.Event{Kind: supervisor.EventStatus, Status: supervisor.Status{State: supervisor.StateOpen}}
	events <- supervisor.Event{Kind: supervisor.EventFrame, Frame: []byte(`["h1"]`)}
	events <- supervisor.Event{Kind: supervisor.EventFrame, Frame: []byte("text")}
	close(events)

	var statuses []supervisor.Status
	var results []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background(), events, Handlers{
			OnStatus: func(s supervisor.Status) { statuses = append(statuses, s) },
			OnResult: func(res Result) { results = append(results, res) },
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the channel closed")
	}

	require.Len(t, statuses, 1)
	assert.Equal(t, supervisor.StateOpen, statuses[0].State)
	require.Len(t, results, 2)
	assert.Equal(t, KindHistory, results[0].Kind)
	assert.Equal(t, KindMessage, results[1].Kind)
	assert.Equal(t, []string{"h1"}, r.History())
}

func TestRouter_RunStopsOnContext(t *testing.T) {
	r := New(10, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, make(chan supervisor.Event), Handlers{})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
