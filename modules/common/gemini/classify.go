package gemini

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// Category - failure class of a Gemini call
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNetwork
	CategoryRateLimited
	CategoryInvalidArgument
	CategoryAuth
	CategoryUnavailable
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryInvalidArgument:
		return "invalid_argument"
	case CategoryAuth:
		return "auth"
	case CategoryUnavailable:
		return "unavailable"
	}
	return "unknown"
}

var serverStatus = regexp.MustCompile(`\b5\d{2}\b`)

// Classify - map a GenerateContent error to a Category.
// Structured API errors are read by code and status; anything else falls back to the message text.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if c := classifyStatus(apiErr.Code, apiErr.Status); c != CategoryUnknown {
			return c
		}
		return classifyMessage(apiErr.Message)
	}

	if isNetworkError(err) {
		return CategoryNetwork
	}
	return classifyMessage(err.Error())
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classifyStatus(code int, status string) Category {
	switch strings.ToUpper(status) {
	case "RESOURCE_EXHAUSTED":
		return CategoryRateLimited
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		return CategoryInvalidArgument
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return CategoryAuth
	case "UNAVAILABLE", "INTERNAL", "DEADLINE_EXCEEDED":
		return CategoryUnavailable
	}

	switch {
	case code == 429:
		return CategoryRateLimited
	case code == 400:
		return CategoryInvalidArgument
	case code == 401 || code == 403:
		return CategoryAuth
	case code >= 500 && code <= 599:
		return CategoryUnavailable
	}
	return CategoryUnknown
}

func classifyMessage(msg string) Category {
	upper := strings.ToUpper(msg)

	switch {
	case strings.Contains(upper, "429") || strings.Contains(upper, "RESOURCE_EXHAUSTED"):
		return CategoryRateLimited
	case strings.Contains(upper, "400") || strings.Contains(upper, "INVALID_ARGUMENT"):
		return CategoryInvalidArgument
	case strings.Contains(upper, "401") || strings.Contains(upper, "403") || strings.Contains(upper, "API KEY"):
		return CategoryAuth
	case serverStatus.MatchString(upper) || strings.Contains(upper, "UNAVAILABLE") || strings.Contains(upper, "INTERNAL"):
		return CategoryUnavailable
	}
	return CategoryUnknown
}

// StatusCode - HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
