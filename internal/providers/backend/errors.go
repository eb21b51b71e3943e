package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// parseError extracts a readable message from an error body. FastAPI style
// detail payloads are understood, anything else falls back to the raw text
// and finally the status line.
func parseError(status int, body []byte) string {
	fallback := strings.TrimSpace(fmt.Sprintf("%d %s", status, http.StatusText(status)))

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
		return fallback
	}

	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		if detail, ok := v["detail"]; ok && detail != nil {
			switch d := detail.(type) {
			case string:
				return d
			case []any:
				parts := make([]string, 0, len(d))
				for _, item := range d {
					parts = append(parts, detailItem(item))
				}
				return strings.Join(parts, ", ")
			case map[string]any:
				if message, ok := d["message"].(string); ok && message != "" {
					return message
				}
				return marshalString(d)
			}
		}
		if message, ok := v["message"].(string); ok && message != "" {
			return message
		}
	case nil:
		return fallback
	}
	return marshalString(data)
}

func detailItem(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"msg", "message"} {
			if text, ok := v[key].(string); ok && text != "" {
				return text
			}
		}
	}
	return marshalString(item)
}

func marshalString(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
