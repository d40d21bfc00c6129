package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/echo-chat/backend/pkg/chatclient"
)

// chatSession is the part of chatclient.Client the console drives.
type chatSession interface {
	Say(text string) bool
	RequestHistory() bool
	Retry()
	Status() chatclient.Status
}

// console reads commands from in and renders events to out. Send failures
// surface through the status events.
type console struct {
	session chatSession

	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

const helpText = `commands:
  /history  request the recent history
  /retry    reconnect after a failure
  /status   show the connection status
  /quit     exit
anything else is sent as a message`

// run processes lines until EOF, /quit or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errCh
			}
			if !c.handle(line) {
				return nil
			}
		}
	}
}

// handle processes one input line. It returns false on /quit.
func (c *console) handle(line string) bool {
	text := strings.TrimSpace(line)
	switch text {
	case "":
		return true
	case "/quit", "/exit":
		return false
	case "/help":
		c.printf("%s\n", helpText)
	case "/history":
		c.session.RequestHistory()
	case "/retry":
		c.session.Retry()
	case "/status":
		c.printStatus(c.session.Status())
	default:
		c.session.Say(text)
	}
	return true
}

func (c *console) printStatus(s chatclient.Status) {
	if s.Error != "" {
		c.printf("* %s: %s\n", s.State, s.Error)
		return
	}
	c.printf("* %s\n", s.State)
}

// printResult renders a routed frame.
func (c *console) printResult(r chatclient.Result) {
	switch r.Kind {
	case chatclient.RouteHistory:
		var b strings.Builder
		fmt.Fprintf(&b, "--- history (%d) ---\n", len(r.History))
		for _, entry := range r.History {
			fmt.Fprintf(&b, "  %s\n", entry)
		}
		b.WriteString("---\n")
		c.printf("%s", b.String())
	case chatclient.RouteMessage:
		c.printf("< %s\n", r.Message.Text)
	}
}
