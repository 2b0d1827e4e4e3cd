package llm

import (
	"bytes"
	"encoding/json"
)

// stripCodeFences removes a surrounding markdown code fence (``` or
// ```json) that some models wrap around JSON even when asked not to.
func stripCodeFences(raw json.RawMessage) json.RawMessage {
	b := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = bytes.TrimPrefix(b, []byte("```"))
	// Drop the info string ("json") up to the first newline.
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	} else {
		b = bytes.TrimPrefix(b, []byte("json"))
	}
	b = bytes.TrimSpace(b)
	b = bytes.TrimSuffix(b, []byte("```"))
	return bytes.TrimSpace(b)
}
