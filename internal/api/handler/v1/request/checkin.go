package request

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const maxBulkScan = 500

var errMissingTicketRef = errors.New("qr_code or ticket_id is required")

type ScanRequest struct {
	QRCode   string `json:"qr_code,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`
	Gate     string `json:"gate,omitempty"`
}

func (req *ScanRequest) Validate() error {
	if req.QRCode == "" && req.TicketID == "" {
		return errMissingTicketRef
	}
	return validation.ValidateStruct(
		req,
		validation.Field(&req.QRCode, validation.Length(0, 128)),
		validation.Field(&req.TicketID, is.UUID),
		validation.Field(&req.Gate, isGate),
	)
}

type BulkScanRequest struct {
	Scans []ScanRequest `json:"scans"`
}

// Validate checks the envelope only; malformed items are reported per item.
func (req *BulkScanRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Scans, validation.Required, validation.Length(1, maxBulkScan)),
	)
}
