package supervisor

import (
	"errors"
	"sync"

	"github.com/echo-chat/backend/internal/transport"
)

// fakeOpener records every handle it opens. Events are fired by the test.
type fakeOpener struct {
	mu      sync.Mutex
	handles []*fakeHandle
	openErr error
}

func (o *fakeOpener) Open(address string, obs transport.Observer) (transport.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}
	h := &fakeHandle{address: address, obs: obs}
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handles)
}

func (o *fakeOpener) handle(i int) *fakeHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handles[i]
}

func (o *fakeOpener) last() *fakeHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handles[len(o.handles)-1]
}

func (o *fakeOpener) setOpenErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openErr = err
}

var errFakeSend = errors.New("fake send fault")

// fakeHandle keeps the original observer even after Detach so tests can
// replay callbacks that were already in flight.
type fakeHandle struct {
	address string
	obs     transport.Observer

	mu        sync.Mutex
	open      bool
	detached  bool
	closed    bool
	closeCode int
	sent      []string
	sendErr   error
}

func (h *fakeHandle) Send(payload string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sendErr != nil {
		return h.sendErr
	}
	if !h.open || h.closed {
		return transport.ErrNotOpen
	}
	h.sent = append(h.sent, payload)
	return nil
}

func (h *fakeHandle) Close(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.closeCode = code
}

func (h *fakeHandle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
}

func (h *fakeHandle) fireOpened() {
	h.mu.Lock()
	h.open = true
	h.mu.Unlock()
	h.obs.Opened()
}

func (h *fakeHandle) fireMessage(data string) {
	h.obs.Message([]byte(data))
}

func (h *fakeHandle) fireErrored(err error) {
	h.obs.Errored(err)
}

func (h *fakeHandle) fireClosed(code int) {
	h.mu.Lock()
	h.open = false
	h.mu.Unlock()
	h.obs.Closed(code, transport.IsCleanClose(code))
}

func (h *fakeHandle) state() (closed, detached bool, code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed, h.detached, h.closeCode
}

func (h *fakeHandle) sentFrames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}

func (h *fakeHandle) failSends(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErr = err
}
