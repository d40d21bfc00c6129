// Package journal records chat frames as JSON lines.
//
// The first line is a header object. Every following line is an event of
// the form [time_offset, direction, payload] where direction is "i" for
// frames received from the server and "o" for frames sent to it.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FormatVersion is written into every header.
const FormatVersion = 1

// Event directions.
const (
	DirectionIn  = "i"
	DirectionOut = "o"
)

// Header is the first line of a journal.
type Header struct {
	Version   int    `json:"version"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Event is a single journal line.
type Event struct {
	TimeOffset float64
	Direction  string
	Data       string
}

// MarshalJSON encodes the event as a three element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.Direction, e.Data})
}

// UnmarshalJSON decodes a three element array.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}

	offset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid time offset type")
	}
	dir, ok := arr[1].(string)
	if !ok || (dir != DirectionIn && dir != DirectionOut) {
		return fmt.Errorf("invalid direction %v", arr[1])
	}
	payload, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid event data type")
	}

	e.TimeOffset = offset
	e.Direction = dir
	e.Data = payload
	return nil
}

// Journal appends events to a writer. It is safe for concurrent use.
type Journal struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// Create opens a journal file at path, truncating it.
func Create(path string) (*Journal, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal file: %w", err)
	}
	return &Journal{writer: file, file: file, startTime: time.Now()}, nil
}

// NewWithWriter creates a journal over w.
func NewWithWriter(w io.Writer) *Journal {
	return &Journal{writer: w, startTime: time.Now()}
}

// WriteHeader writes the header line. Call it once before any event.
func (j *Journal) WriteHeader(url string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(Header{
		Version:   FormatVersion,
		URL:       url,
		Timestamp: j.startTime.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// RecordInbound appends a received frame.
func (j *Journal) RecordInbound(data []byte) error {
	return j.writeEvent(DirectionIn, data)
}

// RecordOutbound appends a sent frame.
func (j *Journal) RecordOutbound(data []byte) error {
	return j.writeEvent(DirectionOut, data)
}

func (j *Journal) writeEvent(direction string, data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	line, err := json.Marshal(Event{
		TimeOffset: time.Since(j.startTime).Seconds(),
		Direction:  direction,
		Data:       string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := j.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the underlying file if the journal owns it.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// StartTime returns when the journal was opened.
func (j *Journal) StartTime() time.Time {
	return j.startTime
}

// Read parses a journal produced by Journal.
func Read(r io.Reader) (Header, []Event, error) {
	var header Header
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return header, nil, fmt.Errorf("failed to read header: %w", err)
		}
		return header, nil, fmt.Errorf("empty journal")
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return header, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return header, events, fmt.Errorf("failed to parse event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return header, events, fmt.Errorf("failed to read events: %w", err)
	}
	return header, events, nil
}
