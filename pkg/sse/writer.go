package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// Event types emitted over a query stream.
const (
	EventToken = "token"
	EventBm25  = "bm25"
	EventFinal = "final"
	EventError = "error"
	EventDone  = "done"
)

// FormatEvent renders one Server-Sent Event. Payloads are JSON encoded;
// strings pass through unencoded.
func FormatEvent(eventType string, data interface{}) (string, error) {
	var dataStr string
	switch v := data.(type) {
	case string:
		dataStr = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal sse payload: %w", err)
		}
		dataStr = string(b)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, dataStr), nil
}

// Writer writes SSE events to a buffered stream, flushing after each one
// so the client sees events as they are produced. A write or flush error
// means the client is gone; the caller should stop emitting.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent formats and writes one event, then flushes.
func (s *Writer) WriteEvent(eventType string, data interface{}) error {
	evt, err := FormatEvent(eventType, data)
	if err != nil {
		return err
	}
	if _, err := s.w.WriteString(evt); err != nil {
		return err
	}
	return s.w.Flush()
}
