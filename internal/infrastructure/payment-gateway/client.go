package paymentgateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nexcommerce/payment-service/pkg/errs"
	"github.com/nexcommerce/payment-service/pkg/httpclient"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

const DefaultAPIBaseURL = "https://www.coinpayments.net/api.php"

const apiVersion = "1"

// Rate is one entry of the provider's rate table.
type Rate struct {
	Name       string `json:"name"`
	RateBTC    string `json:"rate_btc"`
	TXFee      string `json:"tx_fee"`
	Confirms   string `json:"confirms"`
	Accepted   int    `json:"accepted"`
	CanConvert int    `json:"can_convert"`
}

// TransactionRequest carries every mandatory field of a create-transaction
// call. Currency1 is the invoice's billing currency, Currency2 the settlement
// currency the buyer selected, and Custom an opaque correlation value the
// provider round-trips in callbacks.
type TransactionRequest struct {
	Currency1  string
	Currency2  string
	Amount     string
	ItemName   string
	Custom     string
	SuccessURL string
	CancelURL  string
	IPNURL     string
	BuyerName  string
	BuyerEmail string
}

// TransactionResult is the provider's answer to an accepted create-transaction
// call. StatusURL is the hosted payment page the buyer is redirected to.
type TransactionResult struct {
	TxnID          string `json:"txn_id"`
	Address        string `json:"address"`
	Amount         string `json:"amount"`
	ConfirmsNeeded string `json:"confirms_needed"`
	Timeout        int64  `json:"timeout"`
	StatusURL      string `json:"status_url"`
	CheckoutURL    string `json:"checkout_url"`
	QRCodeURL      string `json:"qrcode_url"`
}

// Client wraps the CoinPayments HTTP API. Every call is a single HMAC-signed
// form POST; the breaker fails fast when the provider is down, it does not
// retry.
type Client struct {
	publicKey  string
	privateKey string
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func CreateCoinPaymentsClient(publicKey, privateKey, baseURL string, breaker *gobreaker.CircuitBreaker[[]byte]) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	return &Client{
		publicKey:  publicKey,
		privateKey: privateKey,
		baseURL:    baseURL,
		breaker:    breaker,
	}
}

// GetRates fetches the provider's rate table. With acceptedOnly the provider
// filters the table to coins the merchant accepts; otherwise every coin is
// returned along with its accepted flag.
func (c *Client) GetRates(ctx context.Context, acceptedOnly bool) (map[string]Rate, error) {
	params := url.Values{}
	if acceptedOnly {
		params.Set("accepted", "1")
	}

	rates := map[string]Rate{}
	if err := c.call(ctx, "rates", params, &rates); err != nil {
		return nil, err
	}

	return rates, nil
}

// CreateTransaction asks the provider to open a payment transaction and
// returns the hosted checkout details.
func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (*TransactionResult, error) {
	params := url.Values{}
	params.Set("currency1", req.Currency1)
	params.Set("currency2", req.Currency2)
	params.Set("amount", req.Amount)
	params.Set("item_name", req.ItemName)
	params.Set("custom", req.Custom)
	params.Set("success_url", req.SuccessURL)
	params.Set("cancel_url", req.CancelURL)
	params.Set("ipn_url", req.IPNURL)
	params.Set("buyer_name", req.BuyerName)
	params.Set("buyer_email", req.BuyerEmail)

	result := TransactionResult{}
	if err := c.call(ctx, "create_transaction", params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// call signs and sends one API command and decodes the response envelope.
// The envelope is interpreted in exactly three ways: "ok" yields the result,
// any other error string yields an UpstreamError, and an empty error string
// means the provider broke its own contract.
func (c *Client) call(ctx context.Context, cmd string, params url.Values, out interface{}) error {
	params.Set("version", apiVersion)
	params.Set("cmd", cmd)
	params.Set("key", c.publicKey)
	params.Set("format", "json")

	payload := params.Encode()

	mac := hmac.New(sha512.New, []byte(c.privateKey))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	body, err := c.breaker.Execute(func() ([]byte, error) {
		statusCode, respBody, err := httpclient.SendRequest(ctx, httpclient.HttpRequest{
			URL:    c.baseURL,
			Method: http.MethodPost,
			Body:   []byte(payload),
			Headers: map[string]string{
				"Content-Type": "application/x-www-form-urlencoded",
				"HMAC":         signature,
			},
		})
		if err != nil {
			return nil, err
		}

		if statusCode != http.StatusOK {
			return nil, fmt.Errorf("provider returned status %s", strconv.Itoa(statusCode))
		}

		return respBody, nil
	})
	if err != nil {
		log.Error().Err(err).Str("component", "call").Str("cmd", cmd).Msg("")
		return &errs.UpstreamError{Message: err.Error()}
	}

	envelope := struct {
		Error  string          `json:"error"`
		Result json.RawMessage `json:"result"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &errs.UpstreamError{Message: fmt.Sprintf("malformed provider response: %v", err)}
	}

	if envelope.Error == "ok" {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &errs.UpstreamError{Message: fmt.Sprintf("malformed provider result: %v", err)}
		}
		return nil
	}

	if envelope.Error != "" {
		return &errs.UpstreamError{Message: envelope.Error}
	}

	return &errs.InternalInvariantError{Op: cmd}
}
