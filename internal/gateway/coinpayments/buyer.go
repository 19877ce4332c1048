package coinpayments

import (
	"github.com/nexcommerce/payment-service/internal/domain"
)

// BuyerIdentity is advisory metadata shown on the provider's checkout page.
// It has no effect on payment correctness.
type BuyerIdentity struct {
	FullName string
	Email    string
}

// BuyerSource is a tagged union over the two places buyer details can come
// from: a registered member record, or the guest data attached to the
// invoice at checkout.
type BuyerSource interface {
	buyerSource()
}

type RegisteredBuyer struct {
	Member domain.Member

	// FallbackEmail is the guest checkout email, used when the member record
	// has no email on file. Whether that fallback is intentional for legacy
	// accounts is an open product question; the behavior is preserved as-is.
	FallbackEmail string
}

type GuestBuyer struct {
	FirstName string
	LastName  string
	Email     string
}

func (RegisteredBuyer) buyerSource() {}
func (GuestBuyer) buyerSource() {}

// BuyerSourceForInvoice picks the source: a linked member with a non-zero id
// wins, otherwise the invoice's guest data is used.
func BuyerSourceForInvoice(invoice domain.Invoice) BuyerSource {
	if invoice.Member != nil && invoice.Member.ID != 0 {
		return RegisteredBuyer{
			Member:        *invoice.Member,
			FallbackEmail: stringValue(invoice.GuestEmail),
		}
	}

	return GuestBuyer{
		FirstName: stringValue(invoice.GuestFirstName),
		LastName:  stringValue(invoice.GuestLastName),
		Email:     stringValue(invoice.GuestEmail),
	}
}

// ResolveBuyer derives the display name and email for a buyer source.
func ResolveBuyer(src BuyerSource) BuyerIdentity {
	switch buyer := src.(type) {
	case RegisteredBuyer:
		email := buyer.Member.Email
		if email == "" {
			email = buyer.FallbackEmail
		}
		return BuyerIdentity{
			FullName: buyer.Member.FirstName + " " + buyer.Member.LastName,
			Email:    email,
		}
	case GuestBuyer:
		return BuyerIdentity{
			FullName: buyer.FirstName + " " + buyer.LastName,
			Email:    buyer.Email,
		}
	}

	return BuyerIdentity{}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
