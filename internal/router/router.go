// Package router sorts inbound frames into the history panel or the live
// message list.
package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/echo-chat/backend/internal/buffer"
	"github.com/echo-chat/backend/internal/model"
	"github.com/echo-chat/backend/internal/supervisor"
)

// DefaultLiveCapacity is the number of live messages kept.
const DefaultLiveCapacity = 500

// Kind is the classification of an inbound frame.
type Kind int

const (
	// KindHistory is a frame that decodes as a JSON array.
	KindHistory Kind = iota
	// KindMessage is any other frame.
	KindMessage
)

// Result describes how a frame was routed.
type Result struct {
	Kind    Kind
	History []string
	Message model.ChatMessage
}

// Recorder receives every frame the router sees. The journal implements it.
type Recorder interface {
	RecordInbound(data []byte) error
	RecordOutbound(data []byte) error
}

// Router keeps the history snapshot and the live message list.
type Router struct {
	live     *buffer.Ring[model.ChatMessage]
	recorder Recorder
	logger   zerolog.Logger

	mu      sync.RWMutex
	history []string
}

// New creates a Router keeping up to liveCapacity live messages.
func New(liveCapacity int, recorder Recorder, logger zerolog.Logger) *Router {
	if liveCapacity <= 0 {
		liveCapacity = DefaultLiveCapacity
	}
	return &Router{
		live:     buffer.NewRing[model.ChatMessage](liveCapacity),
		recorder: recorder,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// DecodeHistory decodes a frame holding a JSON array. String elements are
// kept as is; any other element is kept as its JSON text.
func DecodeHistory(frame []byte) ([]string, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, false
	}

	entries := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			entries = append(entries, s)
			continue
		}
		entries = append(entries, string(item))
	}
	return entries, true
}

// Route classifies one inbound frame. A JSON array replaces the history;
// anything else is appended to the live list.
func (r *Router) Route(frame []byte) Result {
	if r.recorder != nil {
		if err := r.recorder.RecordInbound(frame); err != nil {
			r.logger.Warn().Err(err).Msg("failed to record inbound frame")
		}
	}

	if entries, ok := DecodeHistory(frame); ok {
		r.mu.Lock()
		r.history = entries
		r.mu.Unlock()

		r.logger.Debug().Int("entries", len(entries)).Msg("history replaced")
		return Result{Kind: KindHistory, History: append([]string(nil), entries...)}
	}

	msg := model.NewChatMessage(model.DirectionReceived, string(frame))
	r.live.Push(msg)
	return Result{Kind: KindMessage, Message: msg}
}

// RecordSent appends a locally sent message to the live list.
func (r *Router) RecordSent(text string) model.ChatMessage {
	if r.recorder != nil {
		if err := r.recorder.RecordOutbound([]byte(text)); err != nil {
			r.logger.Warn().Err(err).Msg("failed to record outbound frame")
		}
	}

	msg := model.NewChatMessage(model.DirectionSent, text)
	r.live.Push(msg)
	return msg
}

// History returns a copy of the latest history snapshot.
func (r *Router) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// Messages returns the live messages, oldest first.
func (r *Router) Messages() []model.ChatMessage {
	return r.live.Items()
}

// Handlers are the callbacks Run invokes. Either may be nil.
type Handlers struct {
	OnStatus func(supervisor.Status)
	OnResult func(Result)
}

// Run consumes supervisor events until the channel closes or ctx is done.
func (r *Router) Run(ctx context.Context, events <-chan supervisor.Event, h Handlers) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case supervisor.EventStatus:
				if h.OnStatus != nil {
					h.OnStatus(ev.Status)
				}
			case supervisor.EventFrame:
				res := r.Route(ev.Frame)
				if h.OnResult != nil {
					h.OnResult(res)
				}
			}
		}
	}
}
