package relay

import (
	"encoding/json"
	"time"
)

// NewEncoder returns the default envelope encoder.
//
// A payload that is already a record (a map carrying a "topic" key) passes
// through as-is: a timestamp is filled in if absent and the static source
// identity is merged under "src", with caller-provided fields winning on
// conflict. Any other payload is wrapped into a minimal envelope
// {ts, topic, args:[payload]}.
func NewEncoder(defaultTopic string, source map[string]any) Encoder {
	return func(payload any) ([]byte, error) {
		record := asRecord(payload)
		if record == nil {
			record = map[string]any{
				"ts":    nowMillis(),
				"topic": defaultTopic,
				"args":  []any{payload},
			}
		} else {
			if _, ok := record["ts"]; !ok {
				record["ts"] = nowMillis()
			}
		}

		if len(source) > 0 {
			record["src"] = mergeSource(source, record["src"])
		}

		line, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		return append(line, '\n'), nil
	}
}

// asRecord recognizes payloads that are already envelopes. The returned map
// is a shallow copy so encoding never mutates the caller's value.
func asRecord(payload any) map[string]any {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	if _, ok := m["topic"]; !ok {
		return nil
	}
	record := make(map[string]any, len(m)+2)
	for k, v := range m {
		record[k] = v
	}
	return record
}

func mergeSource(source map[string]any, existing any) map[string]any {
	merged := make(map[string]any, len(source))
	for k, v := range source {
		merged[k] = v
	}
	if callerSrc, ok := existing.(map[string]any); ok {
		for k, v := range callerSrc {
			merged[k] = v
		}
	}
	return merged
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
