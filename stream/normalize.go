// ABOUTME: Event normalizer converting raw SSE payloads into canonical step records.
// ABOUTME: Content precedence is result > message > serialized payload; the receive instant is the sort key.

package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Normalize converts a raw event payload into a Step. The payload is a
// loosely-typed JSON object that may carry a "result" field, a "message"
// field, or neither; with neither, the whole payload is re-serialized as the
// content so nothing is silently lost.
//
// The server embeds no trustworthy timestamp, so receivedAt (the instant this
// client observed the event) is the sort key. Unparsable payloads return an
// error; the caller logs and drops the event without ending the session.
func Normalize(eventType string, data []byte, receivedAt time.Time) (Step, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return Step{}, fmt.Errorf("parse %s event payload: %w", eventType, err)
	}

	content := contentOf(payload)

	return Step{
		Kind:       KindOf(eventType),
		Content:    content,
		Display:    displayClock(receivedAt),
		ReceivedAt: receivedAt,
	}, nil
}

// payloadField pulls a single string field out of a JSON payload, returning
// "" when the payload is unreadable or the field is absent or non-string.
func payloadField(data, key string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return ""
	}
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

// unmarshalLoose decodes a JSON payload into v, tolerating unknown fields.
func unmarshalLoose(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}

// contentOf extracts the display content from a payload: result wins over
// message, and a payload with neither is serialized wholesale.
func contentOf(payload map[string]any) string {
	if s, ok := payload["result"].(string); ok && s != "" {
		return s
	}
	if s, ok := payload["message"].(string); ok && s != "" {
		return s
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// A decoded map always re-marshals; this is unreachable in practice.
		return fmt.Sprintf("%v", payload)
	}
	return string(raw)
}
