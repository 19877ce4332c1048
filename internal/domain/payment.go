package domain

const (
	TransactionStatusPending = "pending"
	TransactionStatusPaid    = "paid"
	TransactionStatusFailed  = "failed"
	TransactionStatusExpired = "expired"
)

type Money struct {
	Amount   float64
	Currency string
}

type Member struct {
	ID        int64  `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Email     string `db:"email"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

type Invoice struct {
	ID             int64   `db:"id"`
	MemberID       *int64  `db:"member_id"`
	Currency       string  `db:"currency"`
	Total          float64 `db:"total"`
	CheckoutURL    string  `db:"checkout_url"`
	GuestFirstName *string `db:"guest_first_name"`
	GuestLastName  *string `db:"guest_last_name"`
	GuestEmail     *string `db:"guest_email"`
	CreatedAt      int64   `db:"created_at"`
	UpdatedAt      int64   `db:"updated_at"`
	DeletedAt      *int64  `db:"deleted_at"`
	Items          []InvoiceItem
	Member         *Member
}

type InvoiceItem struct {
	ID        int64   `db:"id"`
	InvoiceID int64   `db:"invoice_id"`
	Name      string  `db:"name"`
	Quantity  int64   `db:"quantity"`
	Amount    float64 `db:"amount"`
	CreatedAt int64   `db:"created_at"`
	UpdatedAt int64   `db:"updated_at"`
}

// Transaction is one attempt to pay an invoice. The transaction number is
// assigned and persisted before any provider call because the provider's
// callback URLs embed it; GatewayID is stamped once the provider accepts
// the transaction.
type Transaction struct {
	ID                int64   `db:"id"`
	TransactionNumber string  `db:"transaction_number"`
	InvoiceID         int64   `db:"invoice_id"`
	Amount            float64 `db:"amount"`
	Currency          string  `db:"currency"`
	GatewayID         *string `db:"gw_id"`
	Status            string  `db:"status"`
	PaidAt            *int64  `db:"paid_at"`
	ExpiredAt         *int64  `db:"expired_at"`
	CreatedAt         int64   `db:"created_at"`
	UpdatedAt         int64   `db:"updated_at"`
	DeletedAt         *int64  `db:"deleted_at"`
}
