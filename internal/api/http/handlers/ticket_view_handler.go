package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/render"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/ticketapi"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// TicketViewHandler serves the ticket detail view as HTML pages and JSON.
type TicketViewHandler struct {
	views         *service.TicketViewService
	journal       *service.JournalService
	renderer      *render.Renderer
	maxImageBytes int64
}

// NewTicketViewHandler constructs handler.
func NewTicketViewHandler(views *service.TicketViewService, journal *service.JournalService, renderer *render.Renderer, maxImageBytes int64) *TicketViewHandler {
	return &TicketViewHandler{views: views, journal: journal, renderer: renderer, maxImageBytes: maxImageBytes}
}

// Page GET /tickets/:id.
func (h *TicketViewHandler) Page(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	view, err := h.views.Load(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return h.page(c, view)
}

// ResolvePage POST /tickets/:id/resolve.
func (h *TicketViewHandler) ResolvePage(c *fiber.Ctx) error {
	view, err := h.resolve(c)
	if err != nil {
		return err
	}
	return h.page(c, view)
}

// ForwardPage POST /tickets/:id/forward.
func (h *TicketViewHandler) ForwardPage(c *fiber.Ctx) error {
	view, err := h.forward(c)
	if err != nil {
		return err
	}
	return h.page(c, view)
}

// Get GET /api/tickets/:id.
func (h *TicketViewHandler) Get(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	view, err := h.views.Load(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketViewResponse(view)})
}

// Resolve POST /api/tickets/:id/resolve.
func (h *TicketViewHandler) Resolve(c *fiber.Ctx) error {
	view, err := h.resolve(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketViewResponse(view)})
}

// Forward POST /api/tickets/:id/forward.
func (h *TicketViewHandler) Forward(c *fiber.Ctx) error {
	view, err := h.forward(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketViewResponse(view)})
}

// Actions GET /api/tickets/:id/actions.
func (h *TicketViewHandler) Actions(c *fiber.Ctx) error {
	entries, err := h.journal.ListForTicket(c.UserContext(), c.Params("id"), c.QueryInt("limit", 50))
	if err != nil {
		return apperrors.NewUnavailable("action journal", err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketActionResponses(entries)})
}

func (h *TicketViewHandler) resolve(c *fiber.Ctx) (*domain.TicketView, error) {
	principal, err := principalOf(c)
	if err != nil {
		return nil, err
	}
	var req dto.ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	return h.views.Resolve(c.UserContext(), principal, c.Params("id"), req.Remark)
}

func (h *TicketViewHandler) forward(c *fiber.Ctx) (*domain.TicketView, error) {
	principal, err := principalOf(c)
	if err != nil {
		return nil, err
	}
	var req dto.ForwardRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	image, err := h.readImage(c)
	if err != nil {
		return nil, err
	}
	return h.views.Forward(c.UserContext(), principal, c.Params("id"), req.Remark, image)
}

// readImage returns the optional "image" file. Reading stops one byte past
// the size limit so the view can reject oversized files.
func (h *TicketViewHandler) readImage(c *fiber.Ctx) (*ticketapi.Upload, error) {
	header, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, apperrors.NewValidationError("invalid image upload", nil)
	}
	if header.Filename == "" && header.Size == 0 {
		return nil, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image upload", nil)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image upload", nil)
	}
	return &ticketapi.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

func (h *TicketViewHandler) page(c *fiber.Ctx, view *domain.TicketView) error {
	html, err := h.renderer.TicketPage(view)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("html", "utf-8")
	return c.SendString(html)
}

func principalOf(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("session required")
	}
	return principal, nil
}
