package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/levishimwe/Hadathub/internal/api/handler/v1/request"
	"github.com/levishimwe/Hadathub/internal/api/handler/v1/response"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/service"
)

type EventService interface {
	CreateEvent(ctx context.Context, actor domain.Actor, in service.CreateEventInput) (domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	UpdateSchedule(ctx context.Context, actor domain.Actor, eventID string, in service.Schedule) (domain.Event, error)
	SetCapacityOverride(ctx context.Context, actor domain.Actor, eventID string, override *int) (domain.Event, error)
	Publish(ctx context.Context, actor domain.Actor, eventID string) (domain.Event, error)
	Cancel(ctx context.Context, actor domain.Actor, eventID string, refundTickets bool) (service.CancelEventReport, error)
	DeleteEvent(ctx context.Context, actor domain.Actor, eventID string) error
	Availability(ctx context.Context, eventID string) (domain.Availability, error)
}

type EventHandler struct {
	svc EventService
}

func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{
		svc: svc,
	}
}

// HandleCreateEvent godoc
// @Summary      Create a draft event
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        request body request.CreateEventRequest true "event"
// @Success      201  {object}  domain.Event
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /events [post]
// @Security BearerAuth
func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CreateEventRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.svc.CreateEvent(ctx.Request.Context(), actor, service.CreateEventInput{
		VenueID:          req.VenueID,
		Name:             req.Name,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		SalesStartAt:     req.SalesStartAt,
		SalesEndAt:       req.SalesEndAt,
		CapacityOverride: req.CapacityOverride,
	})
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

// HandleGetEvent godoc
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Success      200  {object}  domain.Event
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID} [get]
// @Security BearerAuth
func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
	event, err := h.svc.GetEvent(ctx.Request.Context(), ctx.Param("eventID"))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleUpdateSchedule godoc
// @Summary      Reschedule a draft event
// @Description  The new interval is checked against published events at the same venue
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Param        request body request.ScheduleRequest true "schedule"
// @Success      200  {object}  domain.Event
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /events/{eventID}/schedule [patch]
// @Security BearerAuth
func (h *EventHandler) HandleUpdateSchedule(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ScheduleRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.svc.UpdateSchedule(ctx.Request.Context(), actor, ctx.Param("eventID"), service.Schedule{
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		SalesStartAt: req.SalesStartAt,
		SalesEndAt:   req.SalesEndAt,
	})
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleSetCapacityOverride godoc
// @Summary      Set or clear an event's capacity override
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Param        request body request.CapacityOverrideRequest true "override"
// @Success      200  {object}  domain.Event
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /events/{eventID}/capacity [patch]
// @Security BearerAuth
func (h *EventHandler) HandleSetCapacityOverride(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CapacityOverrideRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.svc.SetCapacityOverride(ctx.Request.Context(), actor, ctx.Param("eventID"), req.CapacityOverride)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandlePublishEvent godoc
// @Summary      Publish a draft event
// @Description  Requires a future start, an open sales window and no overlap at the venue
// @Tags         events
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Success      200  {object}  domain.Event
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      422  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /events/{eventID}/publish [post]
// @Security BearerAuth
func (h *EventHandler) HandlePublishEvent(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.svc.Publish(ctx.Request.Context(), actor, ctx.Param("eventID"))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleCancelEvent godoc
// @Summary      Cancel an event
// @Description  Cancels every reserved and paid ticket of the event and optionally refunds the paid ones
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Param        request body request.CancelEventRequest false "options"
// @Success      200  {object}  service.CancelEventReport
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /events/{eventID}/cancel [post]
// @Security BearerAuth
func (h *EventHandler) HandleCancelEvent(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CancelEventRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}
	}

	report, err := h.svc.Cancel(ctx.Request.Context(), actor, ctx.Param("eventID"), req.RefundTickets)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, report)
}

// HandleDeleteEvent godoc
// @Summary      Delete an event without tickets
// @Tags         events
// @Param        eventID path string true "Event ID"
// @Success      204
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /events/{eventID} [delete]
// @Security BearerAuth
func (h *EventHandler) HandleDeleteEvent(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.DeleteEvent(ctx.Request.Context(), actor, ctx.Param("eventID")); err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleAvailability godoc
// @Summary      Remaining capacity of an event
// @Tags         events
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Success      200  {object}  domain.Availability
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID}/availability [get]
// @Security BearerAuth
func (h *EventHandler) HandleAvailability(ctx *gin.Context) {
	availability, err := h.svc.Availability(ctx.Request.Context(), ctx.Param("eventID"))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, availability)
}
