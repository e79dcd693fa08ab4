package controller

import (
	"bufio"

	"geogli-chatbot-be/internal/dto"
	"geogli-chatbot-be/pkg/intent"
	"geogli-chatbot-be/pkg/lexical"
	"geogli-chatbot-be/pkg/rag/pipeline"
	"geogli-chatbot-be/pkg/sse"
)

// sseEmitter adapts the pipeline event sequence onto an SSE stream. A
// write failure means the client disconnected; the pipeline stops at the
// first error it gets back.
type sseEmitter struct {
	writer *sse.Writer
}

func newSSEEmitter(w *bufio.Writer) *sseEmitter {
	return &sseEmitter{writer: sse.NewWriter(w)}
}

func (e *sseEmitter) Token(t string) error {
	return e.writer.WriteEvent(sse.EventToken, map[string]string{"t": t})
}

func (e *sseEmitter) Lexical(in intent.Intent, hits []lexical.Hit) error {
	return e.writer.WriteEvent(sse.EventBm25, dto.LexicalEventPayload{
		Intent: string(in),
		Hits:   dto.FormatLexicalHits(hits, in),
	})
}

func (e *sseEmitter) Final(res pipeline.FinalResult) error {
	return e.writer.WriteEvent(sse.EventFinal, res)
}

func (e *sseEmitter) Error(msg string) error {
	return e.writer.WriteEvent(sse.EventError, map[string]string{"msg": msg})
}

func (e *sseEmitter) Done() error {
	return e.writer.WriteEvent(sse.EventDone, map[string]string{})
}
