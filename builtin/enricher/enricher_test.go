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

package enricher

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rulego/aop/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvocation() *types.Invocation {
	return types.NewInvocation(&types.MethodInfo{Name: "Fly"}, nil, nil, nil, nil)
}

func TestPropertyEnricher(t *testing.T) {
	inv := newInvocation()
	require.NoError(t, NewPropertyEnricher("app", "demo", false).Enrich(inv))
	v, ok := inv.GetProperty("app")
	assert.True(t, ok)
	assert.Equal(t, "demo", v)

	//不覆盖已有的值
	require.NoError(t, NewPropertyEnricher("app", "other", false).Enrich(inv))
	v, _ = inv.GetProperty("app")
	assert.Equal(t, "demo", v)

	require.NoError(t, NewPropertyEnricher("app", "other", true).Enrich(inv))
	v, _ = inv.GetProperty("app")
	assert.Equal(t, "other", v)
}

func TestPropertyEnricherFunc(t *testing.T) {
	onlyFly := func(invocation *types.Invocation) bool {
		return invocation.ProxyMethod.Name == "Fly"
	}
	e := NewPropertyEnricherFunc("method", func(invocation *types.Invocation) interface{} {
		return invocation.ProxyMethod.Name
	}, onlyFly, false)

	inv := newInvocation()
	require.NoError(t, e.Enrich(inv))
	v, _ := inv.GetProperty("method")
	assert.Equal(t, "Fly", v)

	other := types.NewInvocation(&types.MethodInfo{Name: "Name"}, nil, nil, nil, nil)
	require.NoError(t, e.Enrich(other))
	_, ok := other.GetProperty("method")
	assert.False(t, ok)

	assert.NoError(t, (&PropertyEnricher{Name: "empty"}).Enrich(inv))
}

func TestInvocationIdEnricher(t *testing.T) {
	e := &InvocationIdEnricher{}
	inv := newInvocation()
	require.NoError(t, e.Enrich(inv))
	v, ok := inv.GetProperty(types.PropertyInvocationId)
	require.True(t, ok)
	id, err := uuid.FromString(v.(string))
	require.NoError(t, err)
	assert.Equal(t, byte(uuid.V4), id.Version())

	//已经存在则保留
	require.NoError(t, e.Enrich(inv))
	again, _ := inv.GetProperty(types.PropertyInvocationId)
	assert.Equal(t, v, again)

	second := newInvocation()
	require.NoError(t, e.Enrich(second))
	other, _ := second.GetProperty(types.PropertyInvocationId)
	assert.NotEqual(t, v, other)
}

func TestStartTimeEnricher(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	inv := newInvocation()
	require.NoError(t, (&StartTimeEnricher{Now: func() time.Time { return fixed }}).Enrich(inv))
	v, _ := inv.GetProperty(types.PropertyStartTime)
	assert.Equal(t, fixed, v)

	inv = newInvocation()
	before := time.Now()
	require.NoError(t, (&StartTimeEnricher{}).Enrich(inv))
	v, _ = inv.GetProperty(types.PropertyStartTime)
	assert.False(t, v.(time.Time).Before(before))
}

func TestEnricherFuncAdapter(t *testing.T) {
	fail := errors.New("fail")
	var e types.InvocationEnricher = types.InvocationEnricherFunc(func(invocation *types.Invocation) error {
		return fail
	})
	assert.Equal(t, fail, e.Enrich(newInvocation()))
}
