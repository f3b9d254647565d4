package service

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"syscall"

	"ragapi/internal/domain"
)

// isConnectivity reports whether err looks like the collaborator could not be
// reached. Structured network errors are checked first; the message keywords
// catch clients that flatten errors into strings.
func isConnectivity(err error, keywords ...string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), keywords...)
}

// storeUnavailable classifies vector store failures.
func storeUnavailable(err error) bool {
	return isConnectivity(err, "connection", "network")
}

// generatorUnavailable classifies generation failures.
func generatorUnavailable(err error) bool {
	return isConnectivity(err, "connection", "refused")
}

func isDimensionMismatch(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "dimension")
}

func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrModelNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model") && strings.Contains(msg, "not found")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// relevance maps a distance onto (0, 1], closer documents scoring higher.
func relevance(distance float64) float64 {
	return round4(1.0 / (1.0 + distance))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
