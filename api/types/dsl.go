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

package types

// AspectDef 拦截配置定义，可以从 JSON 文件加载
//
//	{
//	  "noIntercept": [{"expr": "method == 'Name'"}],
//	  "interceptors": [
//	    {"expr": "typeName endsWith 'IFly'", "with": [{"type": "debug"}]}
//	  ],
//	  "properties": {"app": "demo"}
//	}
type AspectDef struct {
	//NoIntercept 禁止拦截的切入点，任意一个匹配则该调用不执行任何拦截器
	NoIntercept []PointCutDef `json:"noIntercept,omitempty"`
	//Interceptors 切入点和拦截器列表，按定义顺序注册
	Interceptors []InterceptionDef `json:"interceptors,omitempty"`
	//Properties 通过属性增强器写入每次调用的元数据
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// PointCutDef 切入点定义，expr 和 js 二选一
type PointCutDef struct {
	//Expr expr 表达式，返回 bool。例如: method == 'Fly' && typeName endsWith 'IFly'
	Expr string `json:"expr,omitempty"`
	//Js js 函数体，返回 bool。例如: return method === 'Fly'
	Js string `json:"js,omitempty"`
}

// InterceptionDef 切入点以及匹配后执行的拦截器
type InterceptionDef struct {
	PointCutDef
	//With 拦截器组件列表，按顺序组成管道
	With []InterceptorDef `json:"with"`
}

// InterceptorDef 拦截器组件定义
type InterceptorDef struct {
	//Type 组件类型，应该与注册的拦截器组件类型之一匹配
	Type string `json:"type"`
	//Configuration 组件配置
	Configuration Configuration `json:"configuration,omitempty"`
}
