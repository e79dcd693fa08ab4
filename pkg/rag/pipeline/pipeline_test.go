package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"geogli-chatbot-be/pkg/intent"
	"geogli-chatbot-be/pkg/lexical"
	"geogli-chatbot-be/pkg/llm"
	"geogli-chatbot-be/pkg/store"
)

type fakeLexical struct {
	hits  []lexical.Hit
	calls int
}

func (f *fakeLexical) Handle(in intent.Intent, query string, slots intent.Slots) []lexical.Hit {
	f.calls++
	return f.hits
}

type fakeRetriever struct {
	docs  []store.Document
	calls int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) []store.Document {
	f.calls++
	return f.docs
}

// fakeLLM replays a fixed chunk sequence; startErr fails GenerateStream
// before any chunk is produced.
type fakeLLM struct {
	chunks   []llm.StreamChunk
	startErr error
	calls    int
	prompts  []string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) GenerateStream(ctx context.Context, prompt string, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.startErr != nil {
		return nil, f.startErr
	}
	out := make(chan llm.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestPipeline(lex *fakeLexical, ret Retriever, gen llm.LLMProvider, cfg Config) *Pipeline {
	return NewPipeline(intent.NewClassifier("Saudi Arabia"), lex, ret, gen, cfg, testLogger())
}

func defaultConfig() Config {
	return Config{TopK: 6, MinScore: 0.3, DenseEnabled: true, GenerationEnabled: true}
}

func TestLexicalShortCircuit(t *testing.T) {
	lex := &fakeLexical{hits: []lexical.Hit{{Score: 8.1, Fields: map[string]interface{}{"title": "Drought card"}}}}
	ret := &fakeRetriever{}
	gen := &fakeLLM{}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	res := p.Run(context.Background(), "s1", "drought in saudi arabia", "auto", 0, emit)

	if ret.calls != 0 {
		t.Errorf("dense tier called %d times on a lexical hit, want 0", ret.calls)
	}
	if gen.calls != 0 {
		t.Errorf("generation called %d times on a lexical hit, want 0", gen.calls)
	}
	if emit.LexicalRes == nil || len(emit.LexicalRes.Hits) != 1 {
		t.Fatal("expected exactly one lexical event with one hit")
	}
	if emit.DoneCount != 1 {
		t.Errorf("DoneCount = %d, want 1", emit.DoneCount)
	}
	if len(emit.Tokens) != 0 {
		t.Errorf("tokens emitted on lexical path: %v", emit.Tokens)
	}
	if emit.FinalRes != nil {
		t.Error("final event emitted on lexical path")
	}
	if res.Route != string(intent.IntentAskCountry) {
		t.Errorf("Route = %q, want intent name", res.Route)
	}
}

func TestLexicalMissDenseDisabled(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "x.md", Score: 0.9}}}
	gen := &fakeLLM{}
	cfg := defaultConfig()
	cfg.DenseEnabled = false
	p := newTestPipeline(lex, ret, gen, cfg)

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "drought trends", "auto", 0, emit)

	if ret.calls != 0 {
		t.Errorf("retriever called with dense tier disabled")
	}
	if gen.calls != 0 {
		t.Errorf("generation called with dense tier disabled")
	}
	if emit.LexicalRes == nil || len(emit.LexicalRes.Hits) != 0 {
		t.Fatal("expected one lexical event with empty hits")
	}
	if emit.DoneCount != 1 {
		t.Errorf("DoneCount = %d, want 1", emit.DoneCount)
	}
}

func TestGroundedGeneration(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{
		{Source: "soc.md", ChunkId: 2, Score: 0.82, Text: "SOC declined 4% since 2000"},
		{Source: "soc.md", ChunkId: 2, Score: 0.60, Text: "duplicate link"},
		{Source: "weak.md", ChunkId: 0, Score: 0.10, Text: "below the gate"},
	}}
	gen := &fakeLLM{chunks: []llm.StreamChunk{
		{Content: "Soil organic carbon "},
		{Content: "declined 4% since 2000."},
	}}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	res := p.Run(context.Background(), "s1", "soil carbon trends", "auto", 0, emit)

	if gen.calls != 1 {
		t.Fatalf("generation calls = %d, want 1", gen.calls)
	}
	// The prompt sees only documents above the confidence gate
	if strings.Contains(gen.prompts[0], "below the gate") {
		t.Error("low-confidence document leaked into the grounded prompt")
	}
	if len(emit.Tokens) != 2 {
		t.Errorf("token count = %d, want 2", len(emit.Tokens))
	}
	if emit.FinalRes == nil {
		t.Fatal("no final event")
	}
	if emit.FinalRes.Route != RouteGrounded {
		t.Errorf("route = %q, want %q", emit.FinalRes.Route, RouteGrounded)
	}
	if emit.FinalRes.Answer != "Soil organic carbon declined 4% since 2000." {
		t.Errorf("answer = %q", emit.FinalRes.Answer)
	}
	if len(emit.FinalRes.SourceLinks) != 1 || emit.FinalRes.SourceLinks[0] != "soc.md#page2" {
		t.Errorf("source links = %v, want deduped [soc.md#page2]", emit.FinalRes.SourceLinks)
	}
	if emit.FinalRes.SessionId != "s1" {
		t.Errorf("session id = %q", emit.FinalRes.SessionId)
	}
	if res.Route != RouteGrounded {
		t.Errorf("result route = %q", res.Route)
	}
}

func TestConfidenceGateTriggersFallback(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "weak.md", Score: 0.12}}}
	gen := &fakeLLM{chunks: []llm.StreamChunk{{Content: "General knowledge answer."}}}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "obscure question", "auto", 0, emit)

	if emit.FinalRes == nil {
		t.Fatal("no final event")
	}
	if emit.FinalRes.Route != RouteFallback {
		t.Errorf("route = %q, want %q", emit.FinalRes.Route, RouteFallback)
	}
	if len(emit.FinalRes.SourceLinks) != 0 {
		t.Errorf("fallback must carry no source links, got %v", emit.FinalRes.SourceLinks)
	}

	// Disclaimer is streamed character by character before generation output
	joined := strings.Join(emit.Tokens, "")
	if !strings.HasPrefix(joined, "Note: no internal source matched") {
		t.Errorf("stream does not start with the disclaimer: %.60q", joined)
	}
	if !strings.HasSuffix(joined, "General knowledge answer.") {
		t.Errorf("generated text missing from stream: %.60q", joined)
	}
	discLen := len([]rune(disclaimer))
	if len(emit.Tokens) != discLen+1 {
		t.Errorf("token count = %d, want %d disclaimer chars + 1 chunk", len(emit.Tokens), discLen)
	}
	if emit.FinalRes.Answer != disclaimer+"General knowledge answer." {
		t.Errorf("final answer = %q", emit.FinalRes.Answer)
	}
}

func TestScoreExactlyAtThresholdIsFiltered(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "edge.md", Score: 0.3}}}
	gen := &fakeLLM{chunks: []llm.StreamChunk{{Content: "fallback text"}}}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "edge case", "auto", 0, emit)

	// The gate is strictly greater-than
	if emit.FinalRes == nil || emit.FinalRes.Route != RouteFallback {
		t.Errorf("score == threshold should fall back, got %+v", emit.FinalRes)
	}
}

func TestGroundedStartFailureFallsBack(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "good.md", Score: 0.9, Text: "content"}}}
	gen := &fakeLLM{startErr: errors.New("backend down")}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	if emit.FinalRes == nil {
		t.Fatal("no final event")
	}
	// Both grounded and fallback generation hit the same broken backend,
	// so the chain terminates at the templated answer.
	if emit.FinalRes.Route != RouteCannotAnswer {
		t.Errorf("route = %q, want %q", emit.FinalRes.Route, RouteCannotAnswer)
	}
	if !strings.Contains(emit.FinalRes.Answer, "I can't answer confidently with current sources") {
		t.Errorf("answer = %q", emit.FinalRes.Answer)
	}
	if !strings.Contains(emit.FinalRes.Answer, "Generation backend unavailable") {
		t.Errorf("answer does not carry the grounded failure reason: %q", emit.FinalRes.Answer)
	}
	if emit.ErrorMsg != "" {
		t.Errorf("failures must not emit error events, got %q", emit.ErrorMsg)
	}
}

func TestGenerationDisabledGroundedUsesExtractiveSummary(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "a.md", ChunkId: 1, Score: 0.8, Text: "Key fact."}}}
	cfg := defaultConfig()
	cfg.GenerationEnabled = false
	p := newTestPipeline(lex, ret, nil, cfg)

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	if emit.FinalRes == nil {
		t.Fatal("no final event")
	}
	if emit.FinalRes.Route != RouteGrounded {
		t.Errorf("route = %q, confident docs stay grounded even without generation", emit.FinalRes.Route)
	}
	if !strings.Contains(emit.FinalRes.Answer, "Top matching sources:") {
		t.Errorf("answer = %q, want extractive summary", emit.FinalRes.Answer)
	}
	if !strings.Contains(emit.FinalRes.Answer, "a.md#page1") {
		t.Errorf("summary missing source link: %q", emit.FinalRes.Answer)
	}
	if len(emit.Tokens) == 0 {
		t.Error("templated answer must still be streamed")
	}
}

func TestGenerationDisabledNoDocsCannotAnswer(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{}
	cfg := defaultConfig()
	cfg.GenerationEnabled = false
	p := newTestPipeline(lex, ret, nil, cfg)

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	if emit.FinalRes == nil || emit.FinalRes.Route != RouteCannotAnswer {
		t.Fatalf("want cannot_answer final, got %+v", emit.FinalRes)
	}
	if !strings.Contains(emit.FinalRes.Answer, "No relevant documents found in knowledge base") {
		t.Errorf("answer = %q", emit.FinalRes.Answer)
	}
	// Templated answers stream word by word with trailing spaces
	for i, tok := range emit.Tokens {
		if !strings.HasSuffix(tok, " ") {
			t.Errorf("token %d = %q, want trailing space", i, tok)
		}
	}
}

func TestEmptyGenerationOutputFallsBack(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "a.md", Score: 0.9, Text: "fact"}}}
	// Grounded stream yields nothing; fallback stream yields nothing either
	gen := &fakeLLM{}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	if emit.FinalRes == nil || emit.FinalRes.Route != RouteCannotAnswer {
		t.Fatalf("want cannot_answer, got %+v", emit.FinalRes)
	}
	if gen.calls != 2 {
		t.Errorf("generation calls = %d, want grounded then fallback", gen.calls)
	}
}

func TestGroundedStreamInterruptionKeepsPartialAnswer(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "a.md", Score: 0.9, Text: "fact"}}}
	gen := &fakeLLM{chunks: []llm.StreamChunk{
		{Content: "Partial answer "},
		{Err: errors.New("connection reset")},
		{Content: "never delivered"},
	}}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	if emit.FinalRes == nil {
		t.Fatal("no final event")
	}
	if emit.FinalRes.Route != RouteGrounded {
		t.Errorf("route = %q, want grounded with partial answer", emit.FinalRes.Route)
	}
	if emit.FinalRes.Answer != "Partial answer " {
		t.Errorf("answer = %q, want the partial text", emit.FinalRes.Answer)
	}
}

func TestPanicEmitsSingleErrorEvent(t *testing.T) {
	lex := &fakeLexical{}
	p := newTestPipeline(lex, panicRetriever{}, &fakeLLM{}, defaultConfig())

	emit := &CollectEmitter{}
	res := p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	// Callers dereference the result unconditionally, so recovery must
	// still hand back the partial Result.
	if res == nil {
		t.Fatal("Run returned nil after recovering a panic")
	}
	if emit.ErrorMsg != "internal error" {
		t.Errorf("error msg = %q, want internal error", emit.ErrorMsg)
	}
	if emit.FinalRes != nil {
		t.Error("final event must not follow an error event")
	}
	if res.Route != "error" {
		t.Errorf("result route = %q", res.Route)
	}
	if res.LatencyMs < 0 {
		t.Errorf("latency = %d", res.LatencyMs)
	}
}

type panicRetriever struct{}

func (panicRetriever) Retrieve(ctx context.Context, query string, topK int) []store.Document {
	panic("index corrupted")
}

func TestGenerationTimeoutEmitsError(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "a.md", Score: 0.9, Text: "fact"}}}
	gen := &fakeLLM{chunks: []llm.StreamChunk{
		{Content: "partial "},
		{Err: context.DeadlineExceeded},
	}}
	p := newTestPipeline(lex, ret, gen, defaultConfig())

	emit := &CollectEmitter{}
	res := p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	if emit.ErrorMsg != "generation timed out" {
		t.Errorf("error msg = %q, want generation timed out", emit.ErrorMsg)
	}
	if emit.FinalRes != nil {
		t.Error("timeout must terminate without a final event")
	}
	if res.Route != "error" {
		t.Errorf("result route = %q, want error", res.Route)
	}
}

// endlessLLM streams tokens forever until its context is cancelled,
// following the same select contract as the real providers. released
// closes when the producer goroutine exits.
type endlessLLM struct {
	released chan struct{}
}

func (e *endlessLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (e *endlessLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (e *endlessLLM) GenerateStream(ctx context.Context, prompt string, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer close(e.released)
		for {
			select {
			case out <- llm.StreamChunk{Content: "x "}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// dropAfterEmitter simulates a client that disconnects after a fixed
// number of tokens.
type dropAfterEmitter struct {
	CollectEmitter
	allow int
}

func (d *dropAfterEmitter) Token(tok string) error {
	if len(d.Tokens) >= d.allow {
		return errors.New("client gone")
	}
	return d.CollectEmitter.Token(tok)
}

func TestDisconnectReleasesProducerWithoutTimeout(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "a.md", Score: 0.9, Text: "fact"}}}
	gen := &endlessLLM{released: make(chan struct{})}
	cfg := defaultConfig()
	cfg.GenerationTimeout = 0
	p := newTestPipeline(lex, ret, gen, cfg)

	emit := &dropAfterEmitter{allow: 1}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	// Even without a configured timeout the pipeline must cancel the
	// generation context on its way out so the producer can exit.
	select {
	case <-gen.released:
	case <-time.After(2 * time.Second):
		t.Fatal("producer goroutine still blocked after the pipeline returned")
	}
}

func TestZeroMinScoreIsOpenGate(t *testing.T) {
	lex := &fakeLexical{}
	ret := &fakeRetriever{docs: []store.Document{{Source: "a.md", Score: 0.01, Text: "weak but admitted"}}}
	gen := &fakeLLM{chunks: []llm.StreamChunk{{Content: "answer"}}}
	cfg := defaultConfig()
	cfg.MinScore = 0
	p := newTestPipeline(lex, ret, gen, cfg)

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "question", "auto", 0, emit)

	// A configured zero threshold admits any positive score; it must not
	// be silently rewritten to the loader default.
	if emit.FinalRes == nil || emit.FinalRes.Route != RouteGrounded {
		t.Fatalf("zero threshold should ground on score 0.01, got %+v", emit.FinalRes)
	}
}

func TestRouteHintAFallsThrough(t *testing.T) {
	lex := &fakeLexical{hits: []lexical.Hit{{Score: 5, Fields: map[string]interface{}{"id": "card"}}}}
	p := newTestPipeline(lex, &fakeRetriever{}, &fakeLLM{}, defaultConfig())

	emit := &CollectEmitter{}
	p.Run(context.Background(), "s1", "drought", "A", 0, emit)

	// Hint A is accepted but served by the same chain
	if emit.LexicalRes == nil {
		t.Error("route hint A should still run the lexical tier")
	}
}
