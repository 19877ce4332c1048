package dto

type AuthorizeRequest struct {
	InvoiceID int64  `json:"invoice_id" form:"invoice_id"`
	Currency2 string `json:"currency2" form:"coinpayments_currency2"`
}
