package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxOperatorID    ContextKey = "ctx_operator_id"
	CtxDBTransaction ContextKey = "ctx_db_transaction"

	// DefaultOperatorID is attributed to automated cron runs where no human
	// operator authenticated the request.
	DefaultOperatorID = "system"
)

const (
	HeaderRequestID  = "X-Request-ID"
	HeaderOperatorID = "X-Operator-ID"
)

// GetOperatorID returns the acting operator for audit attribution. Cron
// triggers run as DefaultOperatorID.
func GetOperatorID(ctx context.Context) string {
	if operatorID, ok := ctx.Value(CtxOperatorID).(string); ok && operatorID != "" {
		return operatorID
	}
	return DefaultOperatorID
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// SetOperatorID sets the acting operator in the context
func SetOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, CtxOperatorID, operatorID)
}

// SetRequestID sets the request ID in the context
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}
