package response

import (
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/service"
)

// TicketOutcome is returned when a purchase or payment confirmation produced
// a ticket but payment did not settle.
type TicketOutcome struct {
	Kind    string        `json:"kind"`
	Message string        `json:"message"`
	Ticket  domain.Ticket `json:"ticket"`
}

type CancelTicket struct {
	Ticket domain.Ticket         `json:"ticket"`
	Refund *service.RefundResult `json:"refund,omitempty"`
}

type BulkScan struct {
	Results []service.ScanResult `json:"results"`
}

type Health struct {
	Status string `json:"status"`
}
