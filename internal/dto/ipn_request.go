package dto

// IPNNotification is the provider's server-to-server settlement notification,
// posted form-encoded to the gateway callback endpoint. Status >= 100 means
// the payment is complete, a negative status means it failed, anything in
// between is an intermediate confirmation state.
type IPNNotification struct {
	IPNType    string `form:"ipn_type"`
	IPNMode    string `form:"ipn_mode"`
	Merchant   string `form:"merchant"`
	TxnID      string `form:"txn_id"`
	Status     int    `form:"status"`
	StatusText string `form:"status_text"`
	Currency1  string `form:"currency1"`
	Currency2  string `form:"currency2"`
	Amount1    string `form:"amount1"`
	Amount2    string `form:"amount2"`
	Custom     string `form:"custom"`
}

const (
	IPNStatusComplete = 100
)
