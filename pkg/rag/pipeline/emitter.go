package pipeline

import (
	"geogli-chatbot-be/pkg/intent"
	"geogli-chatbot-be/pkg/lexical"
)

// FinalResult is the payload of the terminal final event, and the body of
// the non-streaming query response.
type FinalResult struct {
	SessionId   string   `json:"session_id"`
	Answer      string   `json:"answer"`
	SourceLinks []string `json:"source_links"`
	Route       string   `json:"route"`
	LatencyMs   int64    `json:"latency_ms"`
}

// LexicalResult is the payload of a bm25 event.
type LexicalResult struct {
	Intent intent.Intent `json:"intent"`
	Hits   []lexical.Hit `json:"hits"`
}

// Emitter receives the ordered event sequence for one query. Emission is
// single-producer: the pipeline calls these methods sequentially and stops
// at the first returned error (the consumer is gone).
type Emitter interface {
	Token(t string) error
	Lexical(in intent.Intent, hits []lexical.Hit) error
	Final(res FinalResult) error
	Error(msg string) error
	Done() error
}

// CollectEmitter buffers the event sequence in memory. Used by the
// non-streaming endpoint and by tests that assert on event ordering.
type CollectEmitter struct {
	Tokens     []string
	LexicalRes *LexicalResult
	FinalRes   *FinalResult
	ErrorMsg   string
	DoneCount  int
}

func (c *CollectEmitter) Token(t string) error {
	c.Tokens = append(c.Tokens, t)
	return nil
}

func (c *CollectEmitter) Lexical(in intent.Intent, hits []lexical.Hit) error {
	c.LexicalRes = &LexicalResult{Intent: in, Hits: hits}
	return nil
}

func (c *CollectEmitter) Final(res FinalResult) error {
	c.FinalRes = &res
	return nil
}

func (c *CollectEmitter) Error(msg string) error {
	c.ErrorMsg = msg
	return nil
}

func (c *CollectEmitter) Done() error {
	c.DoneCount++
	return nil
}
