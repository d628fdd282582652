// Copyright (c) 2019 Nguyễn Quốc Đính
// Copyright (c) 2019 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Nguyễn Quốc Đính, Jonas Plum
//
// This code was adapted from
// https://github.com/nqd/flat/blob/master/flat.go

// Package goflatten flattens nested documents into a single level map with
// dotted keys.
package goflatten

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Flatten the map, it returns a map one level deep regardless of how nested
// the original map was. Keys are joined with ".", list indices become keys.
func Flatten(nested map[string]interface{}) (flatmap map[string]interface{}, err error) {
	flatmap = make(map[string]interface{})
	return flatmap, flatten(flatmap, "", nested)
}

// FlattenJSON flattens a JSON object.
func FlattenJSON(document []byte) (map[string]interface{}, error) {
	var nested map[string]interface{}
	if err := json.Unmarshal(document, &nested); err != nil {
		return nil, err
	}
	return Flatten(nested)
}

func flatten(flatmap map[string]interface{}, prefix string, nested interface{}) error {
	if nested == nil {
		return nil
	}

	value := reflect.ValueOf(nested)
	switch value.Kind() {
	case reflect.Map:
		for _, k := range value.MapKeys() {
			if err := flatten(flatmap, join(prefix, fmt.Sprint(k.Interface())), value.MapIndex(k).Interface()); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			if err := flatten(flatmap, join(prefix, strconv.Itoa(i)), value.Index(i).Interface()); err != nil {
				return err
			}
		}
	default:
		if prefix == "" {
			return fmt.Errorf("cannot flatten %T", nested)
		}
		flatmap[prefix] = nested
	}
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Lines renders a flat map as sorted "key=value" lines.
func Lines(flatmap map[string]interface{}) []string {
	keys := make([]string, 0, len(flatmap))
	for k := range flatmap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%v", k, flatmap[k]))
	}
	return lines
}
