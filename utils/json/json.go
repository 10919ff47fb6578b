/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package json wraps encoding/json for DSL decoding and stable cache keys.
package json

import (
	"bytes"
	"encoding/json"
)

// Marshal marshals v without escaping &, < and >.
func Marshal(v interface{}) ([]byte, error) {
	return Marshal2(v, false)
}

// Marshal2 marshals v, escapeHTML controls escaping of &, < and >.
func Marshal2(v interface{}, escapeHTML bool) ([]byte, error) {
	var byteBuf bytes.Buffer
	encoder := json.NewEncoder(&byteBuf)
	encoder.SetEscapeHTML(escapeHTML)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	//去掉 Encode 追加的换行符
	return bytes.TrimSuffix(byteBuf.Bytes(), []byte("\n")), nil
}

// Unmarshal json data to struct.
func Unmarshal(b []byte, m interface{}) error {
	return json.Unmarshal(b, m)
}

// UnmarshalStrict rejects unknown fields, used by DSL definitions.
func UnmarshalStrict(b []byte, m interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.DisallowUnknownFields()
	return decoder.Decode(m)
}

// Format indents json data.
func Format(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
