package dto

type KafkaMessage struct {
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data"`
}

type PaymentEvent struct {
	TransactionNumber string  `json:"transaction_number"`
	InvoiceID         int64   `json:"invoice_id"`
	GatewayID         string  `json:"gw_id"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Status            string  `json:"status"`
	PaidAt            *int64  `json:"paid_at,omitempty"`
}
