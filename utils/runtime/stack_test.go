/*
 * Copyright 2024 The RuleGo Authors.
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

package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type walker struct{}

func (w walker) Walk() {}

func TestStack(t *testing.T) {
	stackTrace := Stack()
	assert.NotEmpty(t, stackTrace)
	assert.True(t, strings.Contains(stackTrace, "testing.go"))
	assert.True(t, strings.Contains(stackTrace, ":"))
}

func TestFuncName(t *testing.T) {
	assert.True(t, strings.HasSuffix(FuncName(walker.Walk), "runtime.walker.Walk"))
	assert.True(t, IsMethodValue(FuncName(walker{}.Walk)))
	assert.False(t, IsMethodValue(FuncName(walker.Walk)))
	assert.Equal(t, "", FuncName("Walk"))
	assert.Equal(t, "", FuncName(nil))
}
