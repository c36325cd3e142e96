package evm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
	pkgerrors "github.com/pkg/errors"
)

// json-rpc "limit exceeded"
const rpcLimitExceeded = -32005

type RPCError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *RPCError) Error() string {
	return e.Err.Error()
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return err
	}
	return &RPCError{Op: op, Transient: classify(err), Err: pkgerrors.Wrap(err, op)}
}

// true - the call may succeed if repeated later
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Transient
	}
	return classify(err)
}

func classify(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, ethereum.NotFound) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError || httpErr.StatusCode == http.StatusTooManyRequests
	}

	var jsonErr rpc.Error
	if errors.As(err, &jsonErr) {
		return jsonErr.ErrorCode() == rpcLimitExceeded
	}

	return false
}
