package dto

type AuthorizeResponse struct {
	TransactionNumber string `json:"transaction_number"`
	RedirectURL       string `json:"redirect_url"`
}
