package domain

import (
	"errors"
	"net/http"
)

const (
	ErrMsgInternalServerError = "internal server error"
	ErrMsgBadRequest          = "bad request"
	ErrMsgParamsBadRequest    = "bad request: %s"
	ErrMsgAccessError         = "access denied"
	ErrMsgPaymentNotFound     = "payment not found"
	ErrMsgJobNotFound         = "job not found"
)

var (
	ErrInternalServerError = errors.New(ErrMsgInternalServerError)
	ErrPaymentNotFound     = errors.New(ErrMsgPaymentNotFound)
	ErrJobNotFound         = errors.New(ErrMsgJobNotFound)
	ErrAddressNotFound     = errors.New("address not found")

	ErrUnknownChain    = errors.New("unknown chain")
	ErrUnknownToken    = errors.New("unknown or disabled token")
	ErrInvalidAmount   = errors.New("amount must be a positive integer in the smallest unit")
	ErrInvalidLifetime = errors.New("invalid lifetime")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidEvent    = errors.New("invalid webhook event")
	ErrInvalidUrl      = errors.New("invalid webhook url")
	ErrNoWebhookUrl    = errors.New("webhook url is not configured")

	ErrChainNotSeeded = errors.New("chain state is not seeded")
)

func GetStatusByErr(err error) (status int) {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrJobNotFound), errors.Is(err, ErrAddressNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnknownChain),
		errors.Is(err, ErrUnknownToken),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidLifetime),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrInvalidUrl),
		errors.Is(err, ErrNoWebhookUrl):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	return status
}
