package controller

import (
	"bytes"
	"fmt"

	"geogli-chatbot-be/internal/pkg/serverutils"
	"geogli-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	History(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Export(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	r.Get("/session/:id/history", c.History)
	r.Delete("/session/:id", c.Delete)
	r.Get("/export/:session_id", c.Export)
}

func (c *sessionController) History(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("id")
	res, err := c.sessionService.History(ctx.Context(), sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session history", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("id")
	if err := c.sessionService.Delete(ctx.Context(), sessionId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session deleted", nil))
}

func (c *sessionController) Export(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("session_id")

	var buf bytes.Buffer
	if err := c.sessionService.ExportPDF(ctx.Context(), sessionId, &buf); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "application/pdf")
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="conversation_%s.pdf"`, sessionId))
	return ctx.Send(buf.Bytes())
}
