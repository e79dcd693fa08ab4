package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"geogli-chatbot-be/pkg/intent"
	"geogli-chatbot-be/pkg/lexical"
	"geogli-chatbot-be/pkg/llm"
	"geogli-chatbot-be/pkg/rag/prompt"
	"geogli-chatbot-be/pkg/store"
)

// Route values carried in the final event.
const (
	RouteGrounded     = "B"
	RouteFallback     = "B_fallback"
	RouteCannotAnswer = "cannot_answer"
)

// disclaimer precedes ungrounded output. Streamed character by character
// so the client renders it before the first generation chunk arrives.
const disclaimer = "Note: no internal source matched this query confidently; the following answer is generated from general knowledge. "

// cannotAnswerTemplate is the guaranteed terminal answer when generation
// cannot run at all.
const cannotAnswerTemplate = "I can't answer confidently with current sources. Please provide more specific information about location, time, or indicator. (Reason: %s)"

// Retriever is the dense tier collaborator. Implementations degrade to an
// empty slice on any internal failure.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []store.Document
}

// LexicalHandler is the keyword short-circuit tier.
type LexicalHandler interface {
	Handle(in intent.Intent, query string, slots intent.Slots) []lexical.Hit
}

// Config fixes the pipeline's gates and feature flags for the process
// lifetime.
type Config struct {
	TopK              int
	MinScore          float32
	DenseEnabled      bool
	GenerationEnabled bool
	GenerationTimeout time.Duration
}

// Result summarizes one completed query for bookkeeping (history, session
// state, analytics). The emitter has already delivered everything the
// client sees.
type Result struct {
	Slots       intent.Slots
	Route       string
	Answer      string
	SourceLinks []string
	LexicalHits []lexical.Hit
	LatencyMs   int64
}

// Pipeline is the fallback chain: lexical short-circuit, dense retrieval
// with a confidence gate, grounded generation, disclaimer fallback
// generation, templated placeholder. It always produces a terminal
// response.
type Pipeline struct {
	classifier *intent.Classifier
	lexical    LexicalHandler
	retriever  Retriever
	provider   llm.LLMProvider
	config     Config
	logger     *log.Logger
}

// NewPipeline creates the orchestrator. provider may be nil only when
// generation is disabled in config.
func NewPipeline(
	classifier *intent.Classifier,
	lexicalHandler LexicalHandler,
	retriever Retriever,
	provider llm.LLMProvider,
	config Config,
	logger *log.Logger,
) *Pipeline {
	if config.TopK <= 0 {
		config.TopK = 6
	}
	// MinScore is taken as-is: zero is a legitimate open gate. The 0.3
	// default belongs to config loading, not to the pipeline.
	return &Pipeline{
		classifier: classifier,
		lexical:    lexicalHandler,
		retriever:  retriever,
		provider:   provider,
		config:     config,
		logger:     logger,
	}
}

// Run processes one query and emits its event sequence. The returned
// Result is always non-nil, including after a recovered panic; the named
// return keeps the deferred recovery's res visible to the caller. An
// emitter error aborts emission (the client disconnected) but still
// returns what was decided so far.
func (p *Pipeline) Run(ctx context.Context, sessionId, query, routeHint string, topK int, emit Emitter) (res *Result) {
	start := time.Now()
	if topK <= 0 {
		topK = p.config.TopK
	}

	res = &Result{}
	defer func() {
		res.LatencyMs = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			p.logger.Printf("[ERROR] Pipeline panic for session %s: %v", sessionId, r)
			res.Route = "error"
			res.Answer = "internal error"
			_ = emit.Error("internal error")
		}
	}()

	// Structured route A is not implemented; its hint falls through to
	// the RAG route.
	if routeHint == "A" {
		p.logger.Printf("[INFO] route_hint=A not supported, using RAG route")
	}

	slots := p.classifier.Classify(query)
	res.Slots = slots
	p.logger.Printf("[DEBUG] Classified session=%s intent=%s country=%q region=%q indicator=%q period=%q",
		sessionId, slots.Intent, slots.Country, slots.Region, slots.Indicator, slots.Period)

	// Lexical tier: a hit short-circuits the whole chain.
	hits := p.lexical.Handle(slots.Intent, query, slots)
	if len(hits) > 0 {
		res.Route = string(slots.Intent)
		res.LexicalHits = hits
		if err := emit.Lexical(slots.Intent, hits); err != nil {
			return res
		}
		_ = emit.Done()
		return res
	}

	// Lexical missed. Without the dense tier there is nothing else to
	// consult: report the empty lexical result and stop.
	if !p.config.DenseEnabled {
		res.Route = string(slots.Intent)
		if err := emit.Lexical(slots.Intent, []lexical.Hit{}); err != nil {
			return res
		}
		_ = emit.Done()
		return res
	}

	// Dense tier with confidence gate.
	docs := p.retriever.Retrieve(ctx, query, topK)
	filtered := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		if d.Score > p.config.MinScore {
			filtered = append(filtered, d)
		}
	}

	if len(filtered) > 0 {
		p.runGrounded(ctx, sessionId, query, filtered, start, emit, res)
		return res
	}

	reason := "No relevant documents found in knowledge base"
	if len(docs) > 0 {
		reason = "Retrieved documents have low confidence scores"
	}
	p.runFallback(ctx, sessionId, query, reason, start, emit, res)
	return res
}

// runGrounded streams generation constrained to the confident documents.
func (p *Pipeline) runGrounded(ctx context.Context, sessionId, query string, docs []store.Document, start time.Time, emit Emitter, res *Result) {
	res.SourceLinks = collectSourceLinks(docs)

	if !p.config.GenerationEnabled {
		// Extractive summary keeps the grounded route alive without a
		// generation backend.
		res.Route = RouteGrounded
		res.Answer = extractiveSummary(docs)
		p.streamWords(res.Answer, emit)
		p.emitFinal(sessionId, start, emit, res)
		return
	}

	// Always cancelable: an early return must release the provider's
	// producer goroutine, not leave it blocked on the chunk channel.
	genCtx, cancel := p.generationContext(ctx)
	defer cancel()

	groundedPrompt := prompt.NewGroundedBuilder(query, docs).Build()
	chunks, err := p.provider.GenerateStream(genCtx, groundedPrompt)
	if err != nil {
		if timedOut(genCtx, err) {
			p.emitTimeout(sessionId, emit, res)
			return
		}
		p.logger.Printf("[WARN] Grounded generation unavailable, falling back: %v", err)
		p.runFallback(ctx, sessionId, query, "Generation backend unavailable", start, emit, res)
		return
	}

	var answer strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			if timedOut(genCtx, chunk.Err) {
				p.emitTimeout(sessionId, emit, res)
				return
			}
			// Tokens may already be out; finalize with what we have
			// rather than retracting the stream.
			p.logger.Printf("[WARN] Grounded stream interrupted: %v", chunk.Err)
			break
		}
		answer.WriteString(chunk.Content)
		if err := emit.Token(chunk.Content); err != nil {
			res.Route = RouteGrounded
			res.Answer = answer.String()
			return
		}
	}

	if answer.Len() == 0 {
		if genCtx.Err() != nil {
			p.emitTimeout(sessionId, emit, res)
			return
		}
		p.runFallback(ctx, sessionId, query, "Generation backend returned no output", start, emit, res)
		return
	}

	res.Route = RouteGrounded
	res.Answer = answer.String()
	p.emitFinal(sessionId, start, emit, res)
}

// runFallback streams the disclaimer and then ungrounded generation. When
// generation is disabled or fails outright, the answer degrades to the
// templated cannot-answer text. This path is terminal: it always emits a
// final event.
func (p *Pipeline) runFallback(ctx context.Context, sessionId, query, reason string, start time.Time, emit Emitter, res *Result) {
	res.SourceLinks = []string{}

	if !p.config.GenerationEnabled || p.provider == nil {
		res.Route = RouteCannotAnswer
		res.Answer = fmt.Sprintf(cannotAnswerTemplate, reason)
		p.streamWords(res.Answer, emit)
		p.emitFinal(sessionId, start, emit, res)
		return
	}

	var answer strings.Builder
	for _, ch := range disclaimer {
		answer.WriteRune(ch)
		if err := emit.Token(string(ch)); err != nil {
			res.Route = RouteFallback
			res.Answer = answer.String()
			return
		}
	}

	genCtx, cancel := p.generationContext(ctx)
	defer cancel()

	chunks, err := p.provider.GenerateStream(genCtx, prompt.FallbackPrompt(query))
	if err != nil {
		if timedOut(genCtx, err) {
			p.emitTimeout(sessionId, emit, res)
			return
		}
		p.logger.Printf("[WARN] Fallback generation failed: %v", err)
		res.Route = RouteCannotAnswer
		res.Answer = fmt.Sprintf(cannotAnswerTemplate, reason)
		p.streamWords(res.Answer, emit)
		p.emitFinal(sessionId, start, emit, res)
		return
	}

	generated := false
	for chunk := range chunks {
		if chunk.Err != nil {
			if timedOut(genCtx, chunk.Err) {
				p.emitTimeout(sessionId, emit, res)
				return
			}
			p.logger.Printf("[WARN] Fallback stream interrupted: %v", chunk.Err)
			break
		}
		generated = true
		answer.WriteString(chunk.Content)
		if err := emit.Token(chunk.Content); err != nil {
			res.Route = RouteFallback
			res.Answer = answer.String()
			return
		}
	}

	if !generated {
		if genCtx.Err() != nil {
			p.emitTimeout(sessionId, emit, res)
			return
		}
		res.Route = RouteCannotAnswer
		res.Answer = fmt.Sprintf(cannotAnswerTemplate, reason)
		p.streamWords(res.Answer, emit)
		p.emitFinal(sessionId, start, emit, res)
		return
	}

	res.Route = RouteFallback
	res.Answer = answer.String()
	p.emitFinal(sessionId, start, emit, res)
}

// generationContext bounds one generation call. The context is
// cancelable even without a configured timeout.
func (p *Pipeline) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.GenerationTimeout > 0 {
		return context.WithTimeout(ctx, p.config.GenerationTimeout)
	}
	return context.WithCancel(ctx)
}

// timedOut reports whether the generation deadline expired, as opposed
// to an ordinary backend failure.
func timedOut(genCtx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(genCtx.Err(), context.DeadlineExceeded)
}

// emitTimeout terminates the stream with an error event. Deadline expiry
// is a hard failure, not a fallback trigger.
func (p *Pipeline) emitTimeout(sessionId string, emit Emitter, res *Result) {
	p.logger.Printf("[ERROR] Generation timed out for session %s", sessionId)
	res.Route = "error"
	res.Answer = "generation timed out"
	_ = emit.Error("generation timed out")
}

func (p *Pipeline) emitFinal(sessionId string, start time.Time, emit Emitter, res *Result) {
	_ = emit.Final(FinalResult{
		SessionId:   sessionId,
		Answer:      res.Answer,
		SourceLinks: res.SourceLinks,
		Route:       res.Route,
		LatencyMs:   time.Since(start).Milliseconds(),
	})
}

// streamWords emits text word by word with a trailing space, the way the
// templated paths deliver pre-built answers.
func (p *Pipeline) streamWords(text string, emit Emitter) {
	for _, word := range strings.Fields(text) {
		if err := emit.Token(word + " "); err != nil {
			return
		}
	}
}

// collectSourceLinks dedupes citation links preserving first-seen order.
func collectSourceLinks(docs []store.Document) []string {
	links := make([]string, 0, len(docs))
	seen := make(map[string]bool)
	for _, d := range docs {
		link := d.SourceLink()
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// extractiveSummary builds a short answer directly from the top documents.
func extractiveSummary(docs []store.Document) string {
	var b strings.Builder
	b.WriteString("Top matching sources:\n")
	limit := len(docs)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		snippet := docs[i].Text
		if len(snippet) > 300 {
			snippet = snippet[:300] + "..."
		}
		b.WriteString(fmt.Sprintf("%d. (%s) %s\n", i+1, docs[i].SourceLink(), snippet))
	}
	return b.String()
}
