package middleware

import (
	"context"

	"github.com/duespay/duespay/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware threads a request ID and the acting operator through
// the request context for audit attribution.
func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)

	// Downstream writes record this identity as created_by/updated_by
	operatorID := c.GetHeader(types.HeaderOperatorID)
	if operatorID == "" {
		operatorID = types.DefaultOperatorID
	}
	ctx = context.WithValue(ctx, types.CtxOperatorID, operatorID)

	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}
