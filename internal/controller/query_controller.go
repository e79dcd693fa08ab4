package controller

import (
	"bufio"
	"context"
	"unicode/utf8"

	"geogli-chatbot-be/internal/dto"
	"geogli-chatbot-be/internal/pkg/serverutils"
	"geogli-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const maxQueryLength = 4000

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	Query(ctx *fiber.Ctx) error
	IndexStats(ctx *fiber.Ctx) error
}

type queryController struct {
	queryService service.IQueryService
}

func NewQueryController(queryService service.IQueryService) IQueryController {
	return &queryController{
		queryService: queryService,
	}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/query/stream", c.Stream)
	r.Post("/query", c.Query)
	r.Get("/index/stats", c.IndexStats)
}

func (c *queryController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

func (c *queryController) Stream(ctx *fiber.Ctx) error {
	q := ctx.Query("q")
	if q == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query parameter 'q' is required")
	}
	// Characters, not bytes: CJK queries are first-class input.
	if utf8.RuneCountInString(q) > maxQueryLength {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Query too long (max 4000 characters)")
	}

	routeHint := ctx.Query("route_hint", "auto")
	if routeHint != "A" && routeHint != "B" && routeHint != "auto" {
		return fiber.NewError(fiber.StatusBadRequest, "route_hint must be A, B or auto")
	}

	topK := clampTopK(ctx.QueryInt("top_k", 0))
	sessionId := resolveSessionId(ctx)

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Session-Id", sessionId)

	// The handler returns before the stream runs; the request context
	// dies with it, so the pipeline gets a fresh one. Client disconnects
	// surface as write errors on the emitter.
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emitter := newSSEEmitter(w)
		c.queryService.StreamQuery(context.Background(), sessionId, q, routeHint, topK, emitter)
	}))

	return nil
}

func (c *queryController) Query(ctx *fiber.Ctx) error {
	req := dto.QueryRequest{
		Q:         ctx.Query("q"),
		RouteHint: ctx.Query("route_hint", "auto"),
		TopK:      ctx.QueryInt("top_k", 0),
	}
	// Parameters may also arrive as a JSON body.
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if req.RouteHint == "" {
		req.RouteHint = "auto"
	}

	if utf8.RuneCountInString(req.Q) > maxQueryLength {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Query too long (max 4000 characters)")
	}
	// Out-of-range top_k is clamped, not rejected.
	req.TopK = clampTopK(req.TopK)
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	sessionId := resolveSessionIdWithBody(ctx, req.SessionId)
	ctx.Set("X-Session-Id", sessionId)

	res := c.queryService.Query(ctx.Context(), sessionId, &req)
	return ctx.JSON(res)
}

func (c *queryController) IndexStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Index stats", c.queryService.IndexStats()))
}

// resolveSessionId prefers the X-Session-Id header over the query
// parameter, minting a fresh id when neither is present.
func resolveSessionId(ctx *fiber.Ctx) string {
	if headerId := ctx.Get("X-Session-Id"); headerId != "" {
		return headerId
	}
	if paramId := ctx.Query("session_id"); paramId != "" {
		return paramId
	}
	return uuid.NewString()
}

func resolveSessionIdWithBody(ctx *fiber.Ctx, bodyId string) string {
	if headerId := ctx.Get("X-Session-Id"); headerId != "" {
		return headerId
	}
	if paramId := ctx.Query("session_id"); paramId != "" {
		return paramId
	}
	if bodyId != "" {
		return bodyId
	}
	return uuid.NewString()
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return 0 // pipeline default
	}
	if topK > 20 {
		return 20
	}
	return topK
}
