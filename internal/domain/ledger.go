package domain

// Ledger is the per-event counter of live tickets.
type Ledger struct {
	EventID   string `json:"event_id"`
	LiveCount int    `json:"live_count"`
	Version   int64  `json:"version"`
}

type Availability struct {
	EventID           string `json:"event_id"`
	EffectiveCapacity int    `json:"effective_capacity"`
	LiveCount         int    `json:"live_count"`
	Remaining         int    `json:"remaining"`
}
