package model

import (
	"bytes"
	"encoding/json"
)

// MalformedArgsKey holds the raw text of action arguments that did not
// decode to a JSON object. Workers reject such calls as invalid input.
const MalformedArgsKey = "_malformed_arguments"

// DecodeArgs parses the arguments of a provider tool call. Empty input
// yields an empty map.
func DecodeArgs(raw []byte) map[string]any {
	args := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]any{MalformedArgsKey: string(raw)}
	}
	return args
}

// MalformedArgs returns the raw text kept by DecodeArgs, if any.
func MalformedArgs(args map[string]any) (string, bool) {
	raw, ok := args[MalformedArgsKey].(string)
	return raw, ok
}
