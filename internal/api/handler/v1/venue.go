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

type VenueService interface {
	CreateVenue(ctx context.Context, actor domain.Actor, in service.CreateVenueInput) (domain.Venue, error)
	GetVenue(ctx context.Context, venueID string) (domain.Venue, error)
	UpdateCapacity(ctx context.Context, actor domain.Actor, venueID string, capacity int) (domain.Venue, error)
}

type VenueHandler struct {
	svc VenueService
}

func NewVenueHandler(svc VenueService) *VenueHandler {
	return &VenueHandler{
		svc: svc,
	}
}

// HandleCreateVenue godoc
// @Summary      Create a venue
// @Description  Organizers register a venue and its seating capacity
// @Tags         venues
// @Accept       json
// @Produce      json
// @Param        request body request.CreateVenueRequest true "venue"
// @Success      201  {object}  domain.Venue
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /venues [post]
// @Security BearerAuth
func (h *VenueHandler) HandleCreateVenue(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CreateVenueRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	venue, err := h.svc.CreateVenue(ctx.Request.Context(), actor, service.CreateVenueInput{
		Name:          req.Name,
		Capacity:      req.Capacity,
		AllowsOverlap: req.AllowsOverlap,
	})
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusCreated, venue)
}

// HandleGetVenue godoc
// @Summary      Get a venue
// @Tags         venues
// @Produce      json
// @Param        venueID path string true "Venue ID"
// @Success      200  {object}  domain.Venue
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /venues/{venueID} [get]
// @Security BearerAuth
func (h *VenueHandler) HandleGetVenue(ctx *gin.Context) {
	venueID := ctx.Param("venueID")
	venue, err := h.svc.GetVenue(ctx.Request.Context(), venueID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, venue)
}

// HandleUpdateVenueCapacity godoc
// @Summary      Change a venue's capacity
// @Description  A decrease is refused when any non-cancelled event already holds more live tickets, or a larger override, than the new capacity
// @Tags         venues
// @Accept       json
// @Produce      json
// @Param        venueID path string true "Venue ID"
// @Param        request body request.UpdateVenueCapacityRequest true "capacity"
// @Success      200  {object}  domain.Venue
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /venues/{venueID}/capacity [patch]
// @Security BearerAuth
func (h *VenueHandler) HandleUpdateVenueCapacity(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.UpdateVenueCapacityRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	venue, err := h.svc.UpdateCapacity(ctx.Request.Context(), actor, ctx.Param("venueID"), req.Capacity)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, venue)
}
