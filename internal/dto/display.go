package dto

import "encoding/json"

// DisplayText unwraps rich message bodies for presentation. Some devices
// submit a JSON object instead of plain text; if the body parses as an object
// with a string text/body/message field, that field is returned. The stored
// body is never modified.
func DisplayText(body string) string {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return body
	}
	for _, key := range []string{"text", "body", "message"} {
		raw, ok := parsed[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return body
}
