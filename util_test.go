// Copyright (c) 2020 Siemens AG
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
// Author(s): Jonas Plum

package fieldstore

import (
	"reflect"
	"testing"
	"time"
)

func Test_lower(t *testing.T) {
	type args struct {
		f interface{}
	}
	tests := []struct {
		name string
		args args
		want interface{}
	}{
		{"Map", args{map[string]interface{}{"OriginalSize": 3}}, map[string]interface{}{"original_size": 3}},
		{"Empty values", args{map[string]interface{}{"SourcePath": "", "Compressed": false}}, map[string]interface{}{"compressed": false}},
		{"List", args{[]interface{}{"A", "B"}}, []interface{}{"A", "B"}},
		{"Nested", args{map[string]interface{}{"Target": map[string]interface{}{"OSVersion": "10"}}}, map[string]interface{}{"target": map[string]interface{}{"os_version": "10"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lower(tt.args.f); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lower() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_isEmptyValue(t *testing.T) {
	var emptyInterface *int
	type args struct {
		v reflect.Value
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{"List", args{reflect.ValueOf([]string{})}, true},
		{"Interface", args{reflect.ValueOf(emptyInterface)}, true},
		{"String", args{reflect.ValueOf("x")}, false},
		{"Bool", args{reflect.ValueOf(false)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyValue(tt.args.v); got != tt.want {
				t.Errorf("isEmptyValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_toMap(t *testing.T) {
	collected := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	got := toMap(&ArtifactMetadata{ID: "artifact_001", Type: TypeLogs, OriginalSize: 10, CollectedAt: collected})
	want := map[string]interface{}{
		"id":            "artifact_001",
		"type":          TypeLogs,
		"size":          int64(0),
		"original_size": int64(10),
		"collected_at":  collected,
		"compressed":    false,
		"verified":      false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("toMap() = %v, want %v", got, want)
	}
}
