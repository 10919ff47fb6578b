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

package reflect

import (
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flyer interface {
	Fly() string
	Speed(factor int) (int, error)
}

type monkey struct {
	name string
}

func (m *monkey) Fly() string { return m.name }

func (m monkey) Name() string { return m.name }

type repo[K comparable, V any] struct{}

func TestMethodOfInterface(t *testing.T) {
	receiver, name, err := MethodOf(flyer.Speed)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf((*flyer)(nil)).Elem(), receiver)
	assert.Equal(t, "Speed", name)
}

func TestMethodOfStruct(t *testing.T) {
	receiver, name, err := MethodOf((*monkey).Fly)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(&monkey{}), receiver)
	assert.Equal(t, "Fly", name)

	receiver, name, err = MethodOf(monkey.Name)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(monkey{}), receiver)
	assert.Equal(t, "Name", name)
}

func TestMethodOfRejectsMethodValue(t *testing.T) {
	m := &monkey{name: "wukong"}
	_, _, err := MethodOf(m.Fly)
	assert.ErrorIs(t, err, ErrNotMethodExpr)

	_, _, err = MethodOf(func(f flyer) string { return "" })
	assert.ErrorIs(t, err, ErrNotMethodExpr)

	_, _, err = MethodOf("Fly")
	assert.ErrorIs(t, err, ErrNotMethodExpr)

	_, _, err = MethodOf(nil)
	assert.ErrorIs(t, err, ErrNotMethodExpr)
}

func TestSameSignature(t *testing.T) {
	a := reflect.TypeOf(func(int) (string, error) { return "", nil })
	b := reflect.TypeOf(func(x int) (s string, err error) { return })
	c := reflect.TypeOf(func(int64) (string, error) { return "", nil })
	assert.True(t, SameSignature(a, b))
	assert.False(t, SameSignature(a, c))
	assert.False(t, SameSignature(a, nil))

	closer := reflect.TypeOf((*io.Closer)(nil)).Elem()
	m, _ := closer.MethodByName("Close")
	assert.True(t, SameSignature(m.Type, reflect.TypeOf(func() error { return nil })))
}

func TestZeroAndIndirect(t *testing.T) {
	assert.Equal(t, 0, Zero(reflect.TypeOf(1)))
	assert.Equal(t, "", Zero(reflect.TypeOf("")))
	assert.Nil(t, Zero(nil))
	assert.Equal(t, reflect.TypeOf(monkey{}), Indirect(reflect.TypeOf(&monkey{})))
}

func TestTypeArguments(t *testing.T) {
	assert.Equal(t, []string{"int", "string"}, TypeArguments(reflect.TypeOf(repo[int, string]{})))
	assert.Equal(t, []string{"string", "map[string]int"}, TypeArguments(reflect.TypeOf(&repo[string, map[string]int]{})))
	assert.Nil(t, TypeArguments(reflect.TypeOf(monkey{})))
}

func TestFriendlyTypeName(t *testing.T) {
	assert.Equal(t, "*github.com/rulego/aop/utils/reflect.monkey", FriendlyTypeName(reflect.TypeOf(&monkey{})))
	assert.Equal(t, "int", FriendlyTypeName(reflect.TypeOf(1)))
	assert.Equal(t, "", FriendlyTypeName(nil))
}
