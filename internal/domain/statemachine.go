package domain

import "fmt"

type eventEdge struct{ from, to EventStatus }

var eventEdges = map[eventEdge]bool{
	{EventDraft, EventPublished}:     true,
	{EventDraft, EventCancelled}:     true,
	{EventPublished, EventCancelled}: true,
}

// TransitionEvent validates (from -> to) against the event machine.
func TransitionEvent(from, to EventStatus) (EventStatus, error) {
	if !eventEdges[eventEdge{from, to}] {
		return from, fmt.Errorf("event %s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return to, nil
}

type ticketEdge struct{ from, to TicketStatus }

var ticketEdges = map[ticketEdge]bool{
	{TicketReserved, TicketPaid}:      true,
	{TicketReserved, TicketCancelled}: true,
	{TicketPaid, TicketCancelled}:     true,
	{TicketPaid, TicketCheckedIn}:     true,
}

// TransitionTicket validates (from -> to) against the ticket machine.
// checked_in and cancelled have no outgoing edges.
func TransitionTicket(from, to TicketStatus) (TicketStatus, error) {
	if !ticketEdges[ticketEdge{from, to}] {
		return from, fmt.Errorf("ticket %s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return to, nil
}

// ReleasesSlot reports whether moving a ticket from -> to frees a ledger slot.
func ReleasesSlot(from, to TicketStatus) bool {
	return from.Live() && !to.Live()
}

// EventTransitions lists every legal event edge.
func EventTransitions() [][2]EventStatus {
	out := make([][2]EventStatus, 0, len(eventEdges))
	for e := range eventEdges {
		out = append(out, [2]EventStatus{e.from, e.to})
	}
	return out
}

// TicketTransitions lists every legal ticket edge.
func TicketTransitions() [][2]TicketStatus {
	out := make([][2]TicketStatus, 0, len(ticketEdges))
	for e := range ticketEdges {
		out = append(out, [2]TicketStatus{e.from, e.to})
	}
	return out
}
