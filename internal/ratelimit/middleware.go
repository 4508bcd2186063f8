package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Policy describes the limit applied to a single endpoint.
type Policy struct {
	Endpoint      string
	MaxRequests   int
	WindowMinutes int
}

type rejection struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	ErrorCode         string `json:"error_code"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	ResetTime         string `json:"reset_time"`
}

// Middleware performs an admission check before the wrapped handler runs.
// Rejected requests never reach the handler, and so never cause an
// external call.
func Middleware(limiter *Limiter, policy Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			admission := limiter.Check(ClientID(ec.Request()), policy.Endpoint, policy.MaxRequests, policy.WindowMinutes)
			if !admission.Allowed {
				ec.Response().Header().Set("Retry-After", strconv.Itoa(admission.RetryAfterSeconds))
				return ec.JSON(http.StatusTooManyRequests, rejection{
					Success:           false,
					Error:             "Rate limit exceeded",
					ErrorCode:         "RATE_LIMITED",
					RetryAfterSeconds: admission.RetryAfterSeconds,
					ResetTime:         admission.ResetTime.Format(time.RFC3339),
				})
			}

			ec.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(admission.Remaining))
			return next(ec)
		}
	}
}
