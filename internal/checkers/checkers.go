// Package checkers holds quicktest checkers shared by curloc tests.
package checkers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

type jsonPathChecker struct {
	path string
}

// JSONPathEquals checks that the JSON document given as got (a []byte,
// json.RawMessage or string) holds want at path, e.g. "$.kind" or
// "$.entries[0].window". want is compared after a JSON round trip, so
// Go ints match JSON numbers.
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

func (c *jsonPathChecker) ArgNames() []string {
	return []string{"got", "want"}
}

func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var raw []byte
	switch v := got.(type) {
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return qt.BadCheckf("got must be a JSON document, not %T", got)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("cannot decode JSON: %w", err)
	}
	value, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("path lookup failed: %w", err)
	}

	want, err := roundTrip(args[0])
	if err != nil {
		return qt.BadCheckf("cannot encode want: %v", err)
	}
	if !reflect.DeepEqual(value, want) {
		note("path", c.path)
		note("value at path", value)
		return errors.New("value at path does not match")
	}
	return nil
}

func roundTrip(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	return out, json.Unmarshal(b, &out)
}
