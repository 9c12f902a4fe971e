package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/levishimwe/Hadathub/internal/api/handler/v1/request"
	"github.com/levishimwe/Hadathub/internal/api/handler/v1/response"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/service"
)

type CheckInService interface {
	Scan(ctx context.Context, actor domain.Actor, in service.ScanInput) (domain.CheckIn, error)
	BulkScan(ctx context.Context, actor domain.Actor, items []service.ScanInput) ([]service.ScanResult, error)
}

type CheckInHandler struct {
	svc CheckInService
}

func NewCheckInHandler(svc CheckInService) *CheckInHandler {
	return &CheckInHandler{
		svc: svc,
	}
}

// HandleScan godoc
// @Summary      Scan a ticket at the gate
// @Description  Admits a paid ticket. Scanning it again returns the original check-in with kind AlreadyCheckedIn.
// @Tags         checkins
// @Accept       json
// @Produce      json
// @Param        request body request.ScanRequest true "scan"
// @Success      201  {object}  domain.CheckIn
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  service.ScanResult
// @Failure      503  {object}  response.Err
// @Router       /checkins/scan [post]
// @Security BearerAuth
func (h *CheckInHandler) HandleScan(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ScanRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	checkIn, err := h.svc.Scan(ctx.Request.Context(), actor, scanInput(req))
	if errors.Is(err, domain.ErrAlreadyCheckedIn) {
		ctx.JSON(http.StatusConflict, service.ScanResult{
			CheckIn: &checkIn,
			Kind:    domain.Kind(err),
			Error:   err.Error(),
		})
		return
	}
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusCreated, checkIn)
}

// HandleBulkScan godoc
// @Summary      Scan a batch of tickets
// @Description  Every item is admitted on its own and reported in request order. Failed items do not affect the others.
// @Tags         checkins
// @Accept       json
// @Produce      json
// @Param        request body request.BulkScanRequest true "scans"
// @Success      200  {object}  response.BulkScan
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Router       /checkins/bulk [post]
// @Security BearerAuth
func (h *CheckInHandler) HandleBulkScan(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.BulkScanRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	results := make([]service.ScanResult, len(req.Scans))
	valid := make([]service.ScanInput, 0, len(req.Scans))
	positions := make([]int, 0, len(req.Scans))
	for i := range req.Scans {
		if err := req.Scans[i].Validate(); err != nil {
			results[i] = service.ScanResult{Kind: "Validation", Error: err.Error()}
			continue
		}
		valid = append(valid, scanInput(req.Scans[i]))
		positions = append(positions, i)
	}

	scanned, err := h.svc.BulkScan(ctx.Request.Context(), actor, valid)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}
	for j, res := range scanned {
		results[positions[j]] = res
	}

	ctx.JSON(http.StatusOK, response.BulkScan{Results: results})
}

func scanInput(req request.ScanRequest) service.ScanInput {
	return service.ScanInput{
		QRCode:   req.QRCode,
		TicketID: req.TicketID,
		Gate:     req.Gate,
	}
}
