package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// IsOverloaded - whether err means the model is temporarily unable to serve
// (rate limited or overloaded). Only these errors are worth retrying.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return true
		}
		switch strings.ToUpper(apiErr.Status) {
		case "UNAVAILABLE", "RESOURCE_EXHAUSTED":
			return true
		}
	}

	// Fall back to the message; some transports flatten the status.
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "unavailable") ||
		strings.Contains(errStr, "resource_exhausted")
}
