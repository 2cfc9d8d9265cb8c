package agent

import (
	"encoding/json"
	"strconv"
)

// FallbackKey derives a deterministic key from the canonical JSON of a raw
// recommendation. Items with identical content share a key.
func FallbackKey(raw json.RawMessage) string {
	canonical := []byte(raw)
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		if b, err := json.Marshal(v); err == nil {
			canonical = b
		}
	}
	var h uint32
	for _, b := range canonical {
		h = h*31 + uint32(b)
	}
	return "rec_" + strconv.FormatUint(uint64(h), 10)
}
