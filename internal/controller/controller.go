package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/nexcommerce/payment-service/internal/dto"
	"github.com/nexcommerce/payment-service/internal/service"
	"github.com/nexcommerce/payment-service/pkg/errs"
	"github.com/nexcommerce/payment-service/pkg/response"
	"github.com/rs/zerolog/log"
)

type Controller struct {
	service service.PaymentService
}

func CreatePaymentController(e *echo.Group, service service.PaymentService, isAdmin echo.MiddlewareFunc) {
	c := Controller{
		service: service,
	}

	e.GET("/payments/options", c.GetPaymentOptions)
	e.POST("/payments", c.Authorize)
	e.DELETE("/payments/:transactionNumber", c.Void)
	e.POST("/payments/gateway-callback", c.GatewayNotification)
	e.GET("/payments/gateway-callback", c.GatewayReturn)

	e.GET("/settings", c.GetSettingsForm, isAdmin)
	e.POST("/settings/test", c.TestSettings, isAdmin)
	e.PUT("/settings", c.UpdateSettings, isAdmin)
}

func (c *Controller) GetPaymentOptions(e echo.Context) error {
	invoiceID, err := strconv.ParseInt(e.QueryParam("invoiceId"), 10, 64)
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	fields, err := c.service.GetPaymentOptions(e.Request().Context(), invoiceID)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", fields)
}

// Authorize creates the provider transaction and redirects the buyer to the
// hosted payment page. The redirect is the last thing this request does.
func (c *Controller) Authorize(e echo.Context) error {
	payload := dto.AuthorizeRequest{}
	err := e.Bind(&payload)
	if err != nil {
		log.Error().Err(err).Str("component", "Authorize").Msg("")
	}

	resp, err := c.service.Authorize(e.Request().Context(), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return e.Redirect(http.StatusFound, resp.RedirectURL)
}

func (c *Controller) Void(e echo.Context) error {
	err := c.service.Void(e.Request().Context(), e.Param("transactionNumber"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", nil)
}

// GatewayNotification is the server-to-server IPN path. The body is read raw
// first because its HMAC signature covers the exact bytes sent.
func (c *Controller) GatewayNotification(e echo.Context) error {
	transactionNumber := e.QueryParam("transactionId")

	body, err := io.ReadAll(e.Request().Body)
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	status, err := strconv.Atoi(values.Get("status"))
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	notification := dto.IPNNotification{
		IPNType:    values.Get("ipn_type"),
		IPNMode:    values.Get("ipn_mode"),
		Merchant:   values.Get("merchant"),
		TxnID:      values.Get("txn_id"),
		Status:     status,
		StatusText: values.Get("status_text"),
		Currency1:  values.Get("currency1"),
		Currency2:  values.Get("currency2"),
		Amount1:    values.Get("amount1"),
		Amount2:    values.Get("amount2"),
		Custom:     values.Get("custom"),
	}

	err = c.service.HandleIPN(e.Request().Context(), transactionNumber, notification, body, e.Request().Header.Get("HMAC"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", nil)
}

// GatewayReturn is the browser leg of the same callback endpoint: the buyer
// coming back from the hosted page gets bounced to the invoice's checkout
// URL.
func (c *Controller) GatewayReturn(e echo.Context) error {
	transactionNumber := e.QueryParam("transactionId")

	returnURL, err := c.service.ResolveReturnURL(e.Request().Context(), transactionNumber)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return e.Redirect(http.StatusFound, returnURL)
}

func (c *Controller) GetSettingsForm(e echo.Context) error {
	fields, err := c.service.GetSettingsForm(e.Request().Context())
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", fields)
}

func (c *Controller) TestSettings(e echo.Context) error {
	body, err := io.ReadAll(e.Request().Body)
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	validated, err := c.service.TestSettings(e.Request().Context(), body)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "gateway settings verified", json.RawMessage(validated))
}

func (c *Controller) UpdateSettings(e echo.Context) error {
	body, err := io.ReadAll(e.Request().Body)
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	if err = c.service.UpdateSettings(e.Request().Context(), body); err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "gateway settings updated", nil)
}
