package facter

import (
	"bytes"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"puppetcheckin/internal/sal"
)

// Separator joins the keys of nested facts.
const Separator = "=>"

var errEmptyOutput = errors.New("empty output")

var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Decode parses Facter's JSON output. Numbers are kept as json.Number and
// null values are replaced with "None".
func Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyOutput
	}
	var raw map[string]any
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		raw[k] = replaceNulls(v)
	}
	return raw, nil
}

func replaceNulls(v any) any {
	switch val := v.(type) {
	case nil:
		return sal.NoneValue
	case map[string]any:
		for k, child := range val {
			val[k] = replaceNulls(child)
		}
	case []any:
		for i, child := range val {
			val[i] = replaceNulls(child)
		}
	}
	return v
}

// Flatten collapses nested mappings into a single level. A value found at
// outer.middle.leaf is stored under "outer=>middle=>leaf". List elements use
// their index as the key segment.
func Flatten(in map[string]any) sal.FactMap {
	out := make(sal.FactMap, len(in))
	for k, v := range in {
		flattenInto(out, k, v)
	}
	return out
}

func flattenInto(out sal.FactMap, key string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			flattenInto(out, key+Separator+k, child)
		}
	case sal.FactMap:
		for k, child := range val {
			flattenInto(out, key+Separator+k, child)
		}
	case []any:
		for i, child := range val {
			flattenInto(out, key+Separator+strconv.Itoa(i), child)
		}
	default:
		out[key] = val
	}
}
