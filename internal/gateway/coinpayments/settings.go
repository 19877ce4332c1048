package coinpayments

import (
	"encoding/json"

	"github.com/nexcommerce/payment-service/pkg/errs"
)

// Settings is the typed form of the persisted settings blob. It is parsed
// and validated once and passed as a struct through every operation.
type Settings struct {
	PublicKey     string `json:"public_key"`
	PrivateKey    string `json:"private_key"`
	MerchantID    string `json:"merchant_id"`
	IPNSecret     string `json:"ipn_secret"`
	DebugEmail    string `json:"debug_email"`
	PassBuyerName bool   `json:"pass_name"`
}

// ParseSettings decodes a settings blob. An absent pass_name defaults to
// true; everything else defaults to empty and fails Validate.
func ParseSettings(raw []byte) (Settings, error) {
	decoded := struct {
		PublicKey     string `json:"public_key"`
		PrivateKey    string `json:"private_key"`
		MerchantID    string `json:"merchant_id"`
		IPNSecret     string `json:"ipn_secret"`
		DebugEmail    string `json:"debug_email"`
		PassBuyerName *bool  `json:"pass_name"`
	}{}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return Settings{}, &errs.ConfigurationInvalidError{Message: err.Error()}
		}
	}

	settings := Settings{
		PublicKey:     decoded.PublicKey,
		PrivateKey:    decoded.PrivateKey,
		MerchantID:    decoded.MerchantID,
		IPNSecret:     decoded.IPNSecret,
		DebugEmail:    decoded.DebugEmail,
		PassBuyerName: true,
	}
	if decoded.PassBuyerName != nil {
		settings.PassBuyerName = *decoded.PassBuyerName
	}

	return settings, nil
}

// Validate checks the invariant every provider call depends on: a non-empty
// key pair.
func (s Settings) Validate() error {
	if s.PublicKey == "" {
		return &errs.ConfigurationInvalidError{Message: "public key is not configured"}
	}
	if s.PrivateKey == "" {
		return &errs.ConfigurationInvalidError{Message: "private key is not configured"}
	}

	return nil
}

func (s Settings) Encode() ([]byte, error) {
	return json.Marshal(s)
}
