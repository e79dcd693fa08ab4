package controller

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"geogli-chatbot-be/internal/dto"
	"geogli-chatbot-be/internal/pkg/serverutils"
	"geogli-chatbot-be/pkg/rag/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// stubQueryService records the arguments of the last call and answers
// with a canned result.
type stubQueryService struct {
	lastSessionId string
	lastQ         string
	lastRouteHint string
	lastTopK      int
	streamCalls   int
	queryCalls    int
}

func (s *stubQueryService) StreamQuery(ctx context.Context, sessionId, q, routeHint string, topK int, emit pipeline.Emitter) *pipeline.Result {
	s.streamCalls++
	s.lastSessionId = sessionId
	s.lastQ = q
	s.lastRouteHint = routeHint
	s.lastTopK = topK
	_ = emit.Token("hi ")
	_ = emit.Final(pipeline.FinalResult{SessionId: sessionId, Answer: "hi", Route: pipeline.RouteGrounded})
	return &pipeline.Result{Route: pipeline.RouteGrounded, Answer: "hi"}
}

func (s *stubQueryService) Query(ctx context.Context, sessionId string, req *dto.QueryRequest) *dto.QueryResponse {
	s.queryCalls++
	s.lastSessionId = sessionId
	s.lastQ = req.Q
	s.lastRouteHint = req.RouteHint
	s.lastTopK = req.TopK
	return &dto.QueryResponse{
		SessionId:   sessionId,
		Answer:      "stub answer",
		SourceLinks: []string{},
		Route:       pipeline.RouteGrounded,
	}
}

func (s *stubQueryService) IndexStats() dto.IndexStatsResponse {
	return dto.IndexStatsResponse{Status: "loaded", TotalVectors: 42, Dimension: 2}
}

func newTestApp(svc *stubQueryService) *fiber.App {
	// Same read buffer as the real server so near-limit GET URLs reach
	// the handler instead of dying at the transport.
	app := fiber.New(fiber.Config{ReadBufferSize: 64 * 1024})
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewQueryController(svc).RegisterRoutes(app)
	return app
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubQueryService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStreamValidation(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{"missing q", "/query/stream", fiber.StatusBadRequest},
		{"query too long", "/query/stream?q=" + strings.Repeat("a", 4001), fiber.StatusRequestEntityTooLarge},
		{"bad route hint", "/query/stream?q=drought&route_hint=C", fiber.StatusBadRequest},
		{"route hint A accepted", "/query/stream?q=drought&route_hint=A", fiber.StatusOK},
		{"route hint auto accepted", "/query/stream?q=drought", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubQueryService{}
			app := newTestApp(svc)

			resp, err := app.Test(httptest.NewRequest("GET", tt.url, nil))
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestStreamSessionIdPrecedence(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	// Header wins over the query parameter
	req := httptest.NewRequest("GET", "/query/stream?q=drought&session_id=from-param", nil)
	req.Header.Set("X-Session-Id", "from-header")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, "from-header", resp.Header.Get("X-Session-Id"))

	// Parameter when no header
	resp, err = app.Test(httptest.NewRequest("GET", "/query/stream?q=drought&session_id=from-param", nil))
	assert.NoError(t, err)
	assert.Equal(t, "from-param", resp.Header.Get("X-Session-Id"))

	// Neither: a fresh id is minted
	resp, err = app.Test(httptest.NewRequest("GET", "/query/stream?q=drought", nil))
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Session-Id"))
}

func TestStreamContentType(t *testing.T) {
	app := newTestApp(&stubQueryService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/query/stream?q=drought", nil))
	assert.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
}

func TestQueryEndpoint(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/query?q=drought+in+ksa&top_k=5", nil)
	req.Header.Set("X-Session-Id", "sess-1")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "sess-1", resp.Header.Get("X-Session-Id"))

	assert.Equal(t, 1, svc.queryCalls)
	assert.Equal(t, "sess-1", svc.lastSessionId)
	assert.Equal(t, "drought in ksa", svc.lastQ)
	assert.Equal(t, 5, svc.lastTopK)

	var body dto.QueryResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "stub answer", body.Answer)
	assert.Equal(t, pipeline.RouteGrounded, body.Route)
}

func TestQueryJSONBody(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	payload := `{"q": "soil carbon", "session_id": "body-sess", "route_hint": "B", "top_k": 3}`
	req := httptest.NewRequest("POST", "/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "body-sess", svc.lastSessionId)
	assert.Equal(t, "soil carbon", svc.lastQ)
	assert.Equal(t, "B", svc.lastRouteHint)
	assert.Equal(t, 3, svc.lastTopK)
}

func TestQueryValidation(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	// Empty q fails validation
	resp, err := app.Test(httptest.NewRequest("POST", "/query", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, svc.queryCalls)

	// Oversized q is rejected before validation
	resp, err = app.Test(httptest.NewRequest("POST", "/query?q="+strings.Repeat("a", 4001), nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestQueryLengthCountsRunes(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	// 1500 CJK characters are 4500 bytes but well under the 4000-char
	// limit and must be accepted.
	cjk := strings.Repeat("沙", 1500)
	payload, _ := json.Marshal(map[string]string{"q": cjk})
	req := httptest.NewRequest("POST", "/query", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, cjk, svc.lastQ)

	// 4001 characters is over the limit regardless of script
	payload, _ = json.Marshal(map[string]string{"q": strings.Repeat("特", 4001)})
	req = httptest.NewRequest("POST", "/query", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestStreamNearLimitQueryReachesHandler(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	// A 4000-char ASCII query overflows the default 4KB read buffer;
	// the enlarged buffer must admit it so the handler can answer 200.
	resp, err := app.Test(httptest.NewRequest("GET", "/query/stream?q="+strings.Repeat("a", 4000), nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, svc.streamCalls)
}

func TestTopKClamping(t *testing.T) {
	svc := &stubQueryService{}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest("POST", "/query?q=drought&top_k=99", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 20, svc.lastTopK)
}

func TestIndexStats(t *testing.T) {
	app := newTestApp(&stubQueryService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/index/stats", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.IndexStatsResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 42, body.Data.TotalVectors)
}
