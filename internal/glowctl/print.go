package glowctl

import (
	"encoding/json"
	"io"
)

// printJSON pretty-prints v to w, matching the JSON the HTTP API itself
// speaks so output can be piped straight into add/infer as input.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
