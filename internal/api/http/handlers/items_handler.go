package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/factory-workflow/internal/api/dto"
	"github.com/spec-kit/factory-workflow/internal/auth"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/history"
	"github.com/spec-kit/factory-workflow/internal/service"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// WorkflowService is the subset of the service layer the item routes use.
type WorkflowService interface {
	Create(ctx context.Context, actor domain.Actor, kind domain.Kind, input service.CreateInput) (*domain.WorkflowItem, error)
	List(ctx context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error)
	Get(ctx context.Context, kind domain.Kind, id string) (*domain.WorkflowItem, error)
	Fire(ctx context.Context, actor domain.Actor, kind domain.Kind, id string, req dto.TransitionRequest) (*domain.WorkflowItem, error)
	History(ctx context.Context, kind domain.Kind, id string) ([]history.Entry, error)
	Summary(ctx context.Context) (domain.Summary, error)
	Departments(ctx context.Context) ([]domain.Department, error)
}

// Assigner hands out queued incidents.
type Assigner interface {
	AssignNext(ctx context.Context, actor domain.Actor, assignee string) (*domain.WorkflowItem, error)
}

// ItemsHandler exposes workflow items over HTTP.
type ItemsHandler struct {
	service  WorkflowService
	assigner Assigner
}

// NewItemsHandler creates the handler.
func NewItemsHandler(svc WorkflowService, assigner Assigner) *ItemsHandler {
	return &ItemsHandler{service: svc, assigner: assigner}
}

// List GET /items/:kind.
func (h *ItemsHandler) List(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	filter, err := parseItemQuery(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.UserContext(), kind, filter)
	if err != nil {
		return err
	}
	resp := make([]dto.ItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, dto.ItemFromDomain(it))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Create POST /items/:kind.
func (h *ItemsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.service.Create(c.UserContext(), actor, kind, service.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Difficulty:  req.Difficulty,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ItemFromDomain(item)})
}

// Get GET /items/:kind/:id.
func (h *ItemsHandler) Get(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.UserContext(), kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ItemFromDomain(item)})
}

// Transition POST /items/:kind/:id/transitions.
func (h *ItemsHandler) Transition(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(string(req.Action)) == "" {
		return apperrors.NewValidationError("action required", nil)
	}
	item, err := h.service.Fire(c.UserContext(), actor, kind, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ItemFromDomain(item)})
}

// History GET /items/:kind/:id/history.
func (h *ItemsHandler) History(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.HistoryFromDomain(entries)})
}

// AssignNext POST /items/incident/assign-next.
func (h *ItemsHandler) AssignNext(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignNextRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.assigner.AssignNext(c.UserContext(), actor, req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ItemFromDomain(item)})
}

// Summary GET /summary.
func (h *ItemsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SummaryFromDomain(summary)})
}

// Departments GET /departments.
func (h *ItemsHandler) Departments(c *fiber.Ctx) error {
	depts, err := h.service.Departments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DepartmentsFromDomain(depts)})
}

func kindParam(c *fiber.Ctx) (domain.Kind, error) {
	kind, err := domain.ParseKind(c.Params("kind"))
	if err != nil {
		return "", apperrors.NewNotFound("item kind", map[string]any{"kind": c.Params("kind")})
	}
	return kind, nil
}

func parseItemQuery(c *fiber.Ctx) (domain.ItemFilter, error) {
	filter := domain.ItemFilter{
		Status:    domain.Status(strings.TrimSpace(c.Query("status"))),
		Query:     strings.TrimSpace(c.Query("q")),
		Direction: c.Query("direction"),
	}
	if filter.Direction != "" && filter.Direction != "newest" && filter.Direction != "oldest" {
		return filter, apperrors.NewValidationError("direction must be newest or oldest", map[string]any{"direction": filter.Direction})
	}

	var err error
	if filter.From, err = parseTime("from", c.Query("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseTime("to", c.Query("to")); err != nil {
		return filter, err
	}
	if raw := c.Query("priority"); raw != "" {
		p := domain.Priority(raw)
		if !p.Valid() {
			return filter, apperrors.NewValidationError("invalid priority", map[string]any{"priority": raw})
		}
		filter.Priority = &p
	}
	if raw := c.Query("difficulty"); raw != "" {
		d := domain.Difficulty(raw)
		if !d.Valid() {
			return filter, apperrors.NewValidationError("invalid difficulty", map[string]any{"difficulty": raw})
		}
		filter.Difficulty = &d
	}

	if raw := c.Query("escalated"); raw != "" {
		escalated, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("escalated must be true or false", map[string]any{"escalated": raw})
		}
		filter.Escalated = &escalated
	}

	filter.Limit = parseInt(c.Query("limit"), defaultListLimit)
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	filter.Offset = parseInt(c.Query("offset"), 0)
	return filter, nil
}

func parseTime(name, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid "+name+" timestamp", map[string]any{name: val})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
