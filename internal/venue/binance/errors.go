package binance

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
)

// Binance API error codes the venue classifies.
const (
	codeUnknown          int64 = -1000
	codeDisconnected     int64 = -1001
	codeTooManyRequests  int64 = -1003
	codeUnexpectedResp   int64 = -1006
	codeTimeout          int64 = -1007
	codeServerBusy       int64 = -1008
	codeTooManyOrders    int64 = -1015
	codeInvalidTimestamp int64 = -1021
	codeNewOrderRejected int64 = -2010
	codeCancelRejected   int64 = -2011
	codeNoSuchOrder      int64 = -2013
)

var transientCodes = map[int64]bool{
	codeUnknown:          true,
	codeDisconnected:     true,
	codeTooManyRequests:  true,
	codeUnexpectedResp:   true,
	codeTimeout:          true,
	codeServerBusy:       true,
	codeTooManyOrders:    true,
	codeInvalidTimestamp: true,
}

func apiError(err error) (*common.APIError, bool) {
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}

// isDuplicateOrder reports the rejection Binance returns when a client order id is reused.
func isDuplicateOrder(err error) bool {
	apiErr, ok := apiError(err)

	return ok && apiErr.Code == codeNewOrderRejected && strings.Contains(strings.ToLower(apiErr.Message), "duplicate")
}

// classify maps a Binance failure onto the venue error classes.
// API errors that are neither transient nor not-found get fallback.
func classify(err error, fallback errors.ErrorCode, message string) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) {
		return errors.Wrap(fallback, message, err)
	}

	apiErr, ok := apiError(err)
	if !ok {
		// transport level failure, the request may or may not have reached the venue
		return errors.Wrap(errors.ErrCodeTransient, message, err)
	}

	switch {
	case transientCodes[apiErr.Code]:
		return errors.Wrap(errors.ErrCodeTransient, message, err)
	case apiErr.Code == codeNoSuchOrder:
		return errors.Wrap(errors.ErrCodeNotFound, message, err)
	case apiErr.Code == codeCancelRejected && strings.Contains(strings.ToLower(apiErr.Message), "unknown order"):
		return errors.Wrap(errors.ErrCodeNotFound, message, err)
	default:
		return errors.Wrap(fallback, message, err)
	}
}
