package sse

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		data      interface{}
		want      string
	}{
		{
			name:      "string payload passes through",
			eventType: EventDone,
			data:      "{}",
			want:      "event: done\ndata: {}\n\n",
		},
		{
			name:      "map payload json encoded",
			eventType: EventToken,
			data:      map[string]string{"t": "hello "},
			want:      "event: token\ndata: {\"t\":\"hello \"}\n\n",
		},
		{
			name:      "struct payload",
			eventType: EventError,
			data: struct {
				Msg string `json:"msg"`
			}{Msg: "boom"},
			want: "event: error\ndata: {\"msg\":\"boom\"}\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatEvent(tt.eventType, tt.data)
			if err != nil {
				t.Fatalf("FormatEvent: %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatEvent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatEventUnmarshalablePayload(t *testing.T) {
	if _, err := FormatEvent(EventFinal, make(chan int)); err == nil {
		t.Error("unmarshalable payload should error")
	}
}

func TestWriterFlushesEachEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))

	if err := w.WriteEvent(EventToken, map[string]string{"t": "a"}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	// The event must be visible without any further writes
	if got := buf.String(); got != "event: token\ndata: {\"t\":\"a\"}\n\n" {
		t.Errorf("buffer after first event = %q", got)
	}

	if err := w.WriteEvent(EventDone, "{}"); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	want := "event: token\ndata: {\"t\":\"a\"}\n\nevent: done\ndata: {}\n\n"
	if got := buf.String(); got != want {
		t.Errorf("buffer = %q, want %q", got, want)
	}
}
