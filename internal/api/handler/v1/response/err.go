package response

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/domain"
)

// Err is the body of every failed request.
type Err struct {
	HTTPStatusCode int    `json:"-"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	RetryAfter     int    `json:"-"`
	cause          error
}

func (e *Err) Error() string {
	return e.Message
}

func (e *Err) Unwrap() error {
	return e.cause
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.Int("status", e.HTTPStatusCode),
			zap.Error(e.cause))
	}
	if e.RetryAfter > 0 {
		ctx.Header("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	ctx.AbortWithStatusJSON(e.HTTPStatusCode, e)
}

func ErrBadRequest(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusBadRequest,
		Kind:           "Validation",
		Message:        err.Error(),
		cause:          err,
	}
}

func ErrUnauthorized(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusUnauthorized,
		Kind:           "Unauthorized",
		Message:        "missing or invalid bearer token",
		cause:          err,
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusForbidden,
		Kind:           "Forbidden",
		Message:        err.Error(),
		cause:          err,
	}
}

func ErrNotFound(resource, key string, value any) *Err {
	return &Err{
		HTTPStatusCode: http.StatusNotFound,
		Kind:           "NotFound",
		Message:        fmt.Sprintf("%s with %s %v not found", resource, key, value),
		cause:          domain.ErrNotFound,
	}
}

func ErrInternalServerError(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusInternalServerError,
		Kind:           "Internal",
		Message:        "internal server error",
		cause:          err,
	}
}

var statusByKind = map[string]int{
	"NotFound":          http.StatusNotFound,
	"Forbidden":         http.StatusForbidden,
	"Validation":        http.StatusBadRequest,
	"InvalidState":      http.StatusConflict,
	"InvalidTransition": http.StatusConflict,
	"OverlapConflict":   http.StatusConflict,
	"AlreadyCheckedIn":  http.StatusConflict,
	"SoldOut":           http.StatusConflict,
	"SalesClosed":       http.StatusUnprocessableEntity,
	"PaymentPending":    http.StatusAccepted,
	"PaymentFailed":     http.StatusPaymentRequired,
	"RefundFailed":      http.StatusBadGateway,
	"Contention":        http.StatusServiceUnavailable,
}

// FromDomain maps an engine error onto its HTTP rendering. Errors outside the
// taxonomy become 500s and their detail is kept out of the body.
func FromDomain(err error) *Err {
	var e *Err
	if errors.As(err, &e) {
		return e
	}

	kind := domain.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		return ErrInternalServerError(err)
	}

	out := &Err{
		HTTPStatusCode: status,
		Kind:           kind,
		Message:        err.Error(),
		cause:          err,
	}
	if kind == "Contention" {
		out.RetryAfter = 1
	}
	return out
}
