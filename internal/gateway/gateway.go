package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill volume")
)

// Gateway is an execution and market data backend. An engine owns exactly
// one gateway for its whole lifetime.
//
// SendOrder must be safe to call concurrently with Read.
type Gateway interface {
	Name() string
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) (SubscribeResult, error)
	SendOrder(ctx context.Context, req schema.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, req schema.CancelRequest) error
	QueryAccount(ctx context.Context) (schema.Account, error)
	QueryPosition(ctx context.Context) ([]schema.Position, error)
	Read(ctx context.Context) (schema.Tick, error)
}

// SubscribeResult reports subscription outcome per symbol.
type SubscribeResult struct {
	Accepted []string
	Rejected map[string]error
}

// OK reports whether every requested symbol was accepted.
func (r SubscribeResult) OK() bool {
	return len(r.Rejected) == 0
}

// SubscriptionError is returned by Subscribe when at least one symbol was
// rejected. It matches exception.ErrSubscription.
type SubscriptionError struct {
	Result SubscribeResult
}

func (e *SubscriptionError) Error() string {
	symbols := make([]string, 0, len(e.Result.Rejected))
	for symbol := range e.Result.Rejected {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, fmt.Sprintf("%s: %v", symbol, e.Result.Rejected[symbol]))
	}
	return fmt.Sprintf("%s, accepted %d, rejected [%s]", exception.ErrSubscription, len(e.Result.Accepted), strings.Join(parts, "; "))
}

func (e *SubscriptionError) Unwrap() error {
	return exception.ErrSubscription
}

// RejectError is returned by SendOrder when the backend refuses an order.
// It matches exception.ErrOrderRejected.
type RejectError struct {
	Reason  string
	Request schema.OrderRequest
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s, symbol: %s, side: %s, reason: %s", exception.ErrOrderRejected, e.Request.Symbol, e.Request.Side, e.Reason)
}

func (e *RejectError) Unwrap() error {
	return exception.ErrOrderRejected
}
