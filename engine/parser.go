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

package engine

import (
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/json"
)

// JsonParser Json
type JsonParser struct {
}

// DecodeAspect 通过json解析拦截配置结构体，未知字段返回错误
func (p *JsonParser) DecodeAspect(dsl []byte) (types.AspectDef, error) {
	var def types.AspectDef
	err := json.UnmarshalStrict(dsl, &def)
	return def, err
}

// EncodeAspect 把拦截配置转换成格式化的json
func (p *JsonParser) EncodeAspect(def interface{}) ([]byte, error) {
	if v, err := json.Marshal(def); err != nil {
		return nil, err
	} else {
		//格式化Json
		return json.Format(v)
	}
}
