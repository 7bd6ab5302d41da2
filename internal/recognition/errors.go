package recognition

import (
	"errors"
	"fmt"
	"strings"
)

// insufficientDetail is the message the service returns for frames with
// nothing recognisable in them.
const insufficientDetail = "lacking sufficient detail"

// APIError is a non-2xx response from the recognition service.
type APIError struct {
	Status   int      `json:"status"`
	Code     int      `json:"code,omitempty"`
	Errors   []string `json:"errors"`
	MoreInfo string   `json:"moreInfo,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("recognition service returned status %d", e.Status)
	}
	return fmt.Sprintf("recognition service returned status %d: %s", e.Status, strings.Join(e.Errors, "; "))
}

// IsInsufficientDetail reports whether err means the frame held no
// decodable content. Such errors are treated as "not found".
func IsInsufficientDetail(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, msg := range apiErr.Errors {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, insufficientDetail) || strings.Contains(lower, "insufficient detail") {
			return true
		}
	}
	return false
}
