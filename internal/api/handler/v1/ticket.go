package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/levishimwe/Hadathub/internal/api/handler/v1/request"
	"github.com/levishimwe/Hadathub/internal/api/handler/v1/response"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/pkg/qrcode"
	"github.com/levishimwe/Hadathub/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type TicketService interface {
	Purchase(ctx context.Context, actor domain.Actor, in service.PurchaseInput) (domain.Ticket, error)
	ConfirmPayment(ctx context.Context, actor domain.Actor, ticketID, paymentRef string) (domain.Ticket, error)
	Cancel(ctx context.Context, actor domain.Actor, in service.CancelTicketInput) (domain.Ticket, *service.RefundResult, error)
	GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (domain.Ticket, error)
	ListMyTickets(ctx context.Context, actor domain.Actor) ([]domain.Ticket, error)
}

type TicketHandler struct {
	svc    TicketService
	qrSize int
}

func NewTicketHandler(svc TicketService, qrSize int) *TicketHandler {
	if qrSize <= 0 {
		qrSize = 256
	}
	return &TicketHandler{
		svc:    svc,
		qrSize: qrSize,
	}
}

// HandlePurchase godoc
// @Summary      Purchase a ticket
// @Description  Reserves one ticket. Retries carrying the same Idempotency-Key return the ticket created first. With a payment_ref the payment is confirmed right away: 202 while it is pending, 402 when it failed and the reservation was released.
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Param        Idempotency-Key header string false "purchase intent key"
// @Param        request body request.PurchaseRequest true "purchase"
// @Success      201  {object}  domain.Ticket
// @Success      202  {object}  response.TicketOutcome
// @Failure      400  {object}  response.Err
// @Failure      402  {object}  response.TicketOutcome
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      422  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /events/{eventID}/tickets [post]
// @Security BearerAuth
func (h *TicketHandler) HandlePurchase(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.PurchaseRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ticket, err := h.svc.Purchase(ctx.Request.Context(), actor, service.PurchaseInput{
		EventID:        ctx.Param("eventID"),
		PricePaid:      req.PricePaid,
		Currency:       req.Currency,
		IdempotencyKey: ctx.GetHeader(idempotencyHeader),
		PaymentRef:     req.PaymentRef,
	})
	if err != nil {
		renderTicketErr(ctx, ticket, err)
		return
	}

	ctx.JSON(http.StatusCreated, ticket)
}

// HandleConfirmPayment godoc
// @Summary      Confirm the payment of a reserved ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        ticketID path string true "Ticket ID"
// @Param        request body request.ConfirmPaymentRequest true "payment"
// @Success      200  {object}  domain.Ticket
// @Success      202  {object}  response.TicketOutcome
// @Failure      400  {object}  response.Err
// @Failure      402  {object}  response.TicketOutcome
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      502  {object}  response.TicketOutcome
// @Router       /tickets/{ticketID}/pay [post]
// @Security BearerAuth
func (h *TicketHandler) HandleConfirmPayment(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ConfirmPaymentRequest
	if respErr := bindJSON(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ticket, err := h.svc.ConfirmPayment(ctx.Request.Context(), actor, ctx.Param("ticketID"), req.PaymentRef)
	if err != nil {
		renderTicketErr(ctx, ticket, err)
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

// renderTicketErr reports unsettled payments together with the ticket they
// concern. Everything else renders as a plain error.
func renderTicketErr(ctx *gin.Context, ticket domain.Ticket, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrPaymentPending):
		status = http.StatusAccepted
	case errors.Is(err, domain.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrRefundFailed):
		status = http.StatusBadGateway
	default:
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}
	if ticket.ID == "" {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(status, response.TicketOutcome{
		Kind:    domain.Kind(err),
		Message: err.Error(),
		Ticket:  ticket,
	})
}

// HandleCancelTicket godoc
// @Summary      Cancel a ticket
// @Description  Attendees cancel their own tickets, organizers any ticket of their events. A paid ticket is refunded when refund is true.
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        ticketID path string true "Ticket ID"
// @Param        request body request.CancelTicketRequest false "options"
// @Success      200  {object}  response.CancelTicket
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /tickets/{ticketID}/cancel [post]
// @Security BearerAuth
func (h *TicketHandler) HandleCancelTicket(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CancelTicketRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}
	}

	ticket, refund, err := h.svc.Cancel(ctx.Request.Context(), actor, service.CancelTicketInput{
		TicketID: ctx.Param("ticketID"),
		Refund:   req.Refund,
	})
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, response.CancelTicket{
		Ticket: ticket,
		Refund: refund,
	})
}

// HandleGetTicket godoc
// @Summary      Get a ticket
// @Tags         tickets
// @Produce      json
// @Param        ticketID path string true "Ticket ID"
// @Success      200  {object}  domain.Ticket
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /tickets/{ticketID} [get]
// @Security BearerAuth
func (h *TicketHandler) HandleGetTicket(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ticket, err := h.svc.GetTicket(ctx.Request.Context(), actor, ctx.Param("ticketID"))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

// HandleTicketQR godoc
// @Summary      Ticket QR code as PNG
// @Tags         tickets
// @Produce      png
// @Param        ticketID path string true "Ticket ID"
// @Success      200  {file}    binary
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /tickets/{ticketID}/qr [get]
// @Security BearerAuth
func (h *TicketHandler) HandleTicketQR(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ticket, err := h.svc.GetTicket(ctx.Request.Context(), actor, ctx.Param("ticketID"))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	png, err := qrcode.PNG(ticket.QRCode, h.qrSize)
	if err != nil {
		err = fmt.Errorf("HandleTicketQR -> qrcode.PNG -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.Data(http.StatusOK, "image/png", png)
}

// HandleListMyTickets godoc
// @Summary      Tickets of the caller
// @Tags         tickets
// @Produce      json
// @Success      200  {array}   domain.Ticket
// @Failure      401  {object}  response.Err
// @Router       /users/me/tickets [get]
// @Security BearerAuth
func (h *TicketHandler) HandleListMyTickets(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	tickets, err := h.svc.ListMyTickets(ctx.Request.Context(), actor)
	if err != nil {
		err = fmt.Errorf("HandleListMyTickets -> h.svc.ListMyTickets -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}

	ctx.JSON(http.StatusOK, tickets)
}
