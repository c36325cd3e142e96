package v1

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"chainpay/gateway/internal/domain"
	"chainpay/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("evm_address", validateAddress)
	return v
}

// /payments
type createPaymentRequest struct {
	Chain      string          `json:"chain" validate:"required,max=64"`
	Amount     decimal.Decimal `json:"amount"` // smallest unit, checked by the service
	TokenID    *uint           `json:"token_id"`
	Lifetime   int             `json:"lifetime" validate:"gte=0"` // minutes, 0 - default
	WebhookUrl string          `json:"webhook_url" validate:"omitempty,url,max=2048"`
}

// /admin/scan-now, /admin/sweep-now. empty chain - all chains
type chainRequest struct {
	Chain string `json:"chain" validate:"max=64"`
}

type sweepAddressRequest struct {
	Address string `json:"address" validate:"required,evm_address"`
	Chain   string `json:"chain" validate:"required,max=64"`
}

type processPaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
}

type sendWebhookRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
	Event     string `json:"event" validate:"required"`
}

type customWebhookRequest struct {
	Url     string         `json:"url" validate:"required,url,max=2048"`
	Payload map[string]any `json:"payload" validate:"required"`
	Secret  string         `json:"secret" validate:"max=256"`
}

type proxyListRequest struct {
	Proxies []string `json:"proxies" validate:"dive,required"`
}

// binds the json body into data and validates it.
// false - the error response is already written
func bindAndValidate[T any](c *gin.Context, data *T) bool {
	if err := c.ShouldBindJSON(data); err != nil {
		responseErr(c, http.StatusBadRequest, domain.ErrMsgBadRequest, "")
		return false
	}

	err := validate.Struct(data)
	if err == nil {
		return true
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		responseErr(c, http.StatusBadRequest, domain.ErrMsgBadRequest, "")
		return false
	}

	responseErr(c, http.StatusBadRequest, formatValidationErr(*data, validationErrs[0]), "")
	return false
}

func validateAddress(fl validator.FieldLevel) bool {
	address, err := utils.SafeCast[string](fl.Field().Interface())
	if err != nil {
		return false
	}
	return common.IsHexAddress(address)
}

func formatValidationErr(data any, err validator.FieldError) string {
	jsonTag := getJSONTag(data, err.StructField())

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", jsonTag)
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s characters long", jsonTag, err.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", jsonTag, err.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid url", jsonTag)
	case "uuid":
		return fmt.Sprintf("field '%s' must be a valid uuid", jsonTag)
	//  custom tags
	case "evm_address":
		return fmt.Sprintf("field '%s' must be a hex address", jsonTag)
	default:
		return fmt.Sprintf("invalid field '%s'", jsonTag)
	}
}

func getJSONTag(structType any, fieldName string) string {
	typ := reflect.TypeOf(structType)
	field, _ := typ.FieldByName(fieldName)
	tag := field.Tag.Get("json")
	if tag == "" {
		return fieldName
	}
	return tag
}
