/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RenderCBOR decodes data and renders it as indented JSON for
// diagnostics. Byte strings that hold well-formed CBOR, such as the
// bstr-wrapped members of a SUIT envelope, are rendered decoded under a
// "<<>>" key; other byte strings are rendered as h'..'.
func RenderCBOR(data []byte) (string, error) {
	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return "", err
	}
	pretty, err := json.MarshalIndent(normaliseCBORForJSON(decoded), "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func normaliseCBORForJSON(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = normaliseCBORForJSON(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[stringifyCBORKey(key)] = normaliseCBORForJSON(val)
		}
		return out
	case []byte:
		if len(v) > 1 && cbor.Wellformed(v) == nil {
			var inner any
			if err := cbor.Unmarshal(v, &inner); err == nil {
				return map[string]any{"<<>>": normaliseCBORForJSON(inner)}
			}
		}
		return fmt.Sprintf("h'%x'", v)
	case cbor.Tag:
		return map[string]any{
			"_cborTag": v.Number,
			"content":  normaliseCBORForJSON(v.Content),
		}
	default:
		return v
	}
}

func stringifyCBORKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	default:
		return fmt.Sprint(k)
	}
}
