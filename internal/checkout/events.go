package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventTransactionAdmitted = "TransactionAdmitted"
	EventTransactionPaid     = "TransactionPaid"
	EventTransactionExpired  = "TransactionExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // transaction id
	Payload       json.RawMessage `json:"payload"`
}

type LineQty struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type TransactionAdmittedPayload struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Lines         []LineQty `json:"lines"`
	Subtotal      int64     `json:"subtotal"`
}

type TransactionPaidPayload struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Method        Method    `json:"method"`
	PaidAt        time.Time `json:"paid_at"`
	Lines         []LineQty `json:"lines"`
	Subtotal      int64     `json:"subtotal"`
}

type TransactionExpiredPayload struct {
	TransactionID string    `json:"transaction_id"`
	Restocked     bool      `json:"restocked"`
	Lines         []LineQty `json:"lines"`
}

func lineQtys(lines []OrderLine) []LineQty {
	out := make([]LineQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineQty{ProductID: l.ProductID, Quantity: l.Quantity, LineTotal: l.Total()})
	}
	return out
}
