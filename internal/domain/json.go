/**
 * @description
 * This file holds the JSON coercion helper shared by the webhook wire
 * structs. Xsolla serializes some identifiers as strings in one API version
 * and numbers in another; coerceString normalizes whichever arrives.
 *
 * @dependencies
 * - encoding/json, strconv: Standard Go libraries.
 */
package domain

import (
	"encoding/json"
	"strconv"
)

// coerceString renders a decoded JSON scalar as a string. Integral floats are
// printed without a fractional part so numeric ids round-trip cleanly.
func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
