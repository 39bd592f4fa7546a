package baas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrNetwork = errors.New("network error")

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("baas: status %d", e.Status)
	}
	return fmt.Sprintf("baas: status %d: %s", e.Status, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if len(body) > 0 {
		var raw struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
			Error   string `json:"error"`
			Details any    `json:"details"`
			Hint    string `json:"hint"`
		}
		if err := json.Unmarshal(body, &raw); err == nil {
			apiErr.Code = stringify(raw.Code)
			apiErr.Message = raw.Message
			if apiErr.Message == "" {
				apiErr.Message = raw.Error
			}
			apiErr.Details = stringify(raw.Details)
			apiErr.Hint = raw.Hint
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// Message translates platform failures into text that can be shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNetwork) {
		return "Network error: Unable to connect to server"
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Status {
	case http.StatusBadRequest:
		return "Bad Request: " + orDefault(apiErr.Message, "Invalid data sent to server")
	case http.StatusUnauthorized:
		return "Unauthorized: Please login again"
	case http.StatusForbidden:
		return "Forbidden: You don't have permission to perform this action"
	case http.StatusNotFound:
		return "Not found: " + orDefault(apiErr.Message, "requested data does not exist")
	case http.StatusConflict:
		detail := apiErr.Details + " " + apiErr.Message
		switch {
		case strings.Contains(detail, "foreign key constraint"):
			return "Data reference error: Please check if all referenced data exists (status, address, etc.)"
		case strings.Contains(detail, "order_number"):
			return "Order number already exists: Please try again"
		default:
			return "Conflict: " + orDefault(apiErr.Message, "Data conflict occurred")
		}
	default:
		return "Server error: " + orDefault(apiErr.Message, http.StatusText(apiErr.Status))
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
