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

package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/rulego/aop/api/types"
)

type IFly interface {
	Fly() string
	GetName() string
	SetName(name string)
}

type IDive interface {
	Dive(depth int) (int, error)
}

type MonkeyKing struct {
	name    string
	flights int
}

func (m *MonkeyKing) Fly() string {
	m.flights++
	return m.name + " flying"
}

func (m *MonkeyKing) GetName() string {
	return m.name
}

func (m *MonkeyKing) SetName(name string) {
	m.name = name
}

func (m *MonkeyKing) Dive(depth int) (int, error) {
	if depth < 0 {
		return 0, &diveError{depth: depth}
	}
	return depth * 2, nil
}

func (m *MonkeyKing) String() string {
	return "MonkeyKing(" + m.name + ")"
}

type diveError struct {
	depth int
}

func (e *diveError) Error() string {
	return "can not dive"
}

type ILoader interface {
	Load(ctx context.Context, key string) (<-chan string, error)
}

type ctxKey struct{}

type loader struct {
	seen interface{}
}

func (l *loader) Load(ctx context.Context, key string) (<-chan string, error) {
	l.seen = ctx.Value(ctxKey{})
	ch := make(chan string, 1)
	ch <- "value:" + key
	return ch, nil
}

type IJoiner interface {
	Join(sep string, parts ...string) string
}

type joiner struct{}

func (j *joiner) Join(sep string, parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

type sealedService struct{}

func (s *sealedService) Sealed() {}

func (s *sealedService) Run() {}

type Repository[K comparable, V any] interface {
	Get(key K) (V, error)
}

type memoryRepository[K comparable, V any] struct {
	items map[K]V
}

func (r *memoryRepository[K, V]) Get(key K) (V, error) {
	v, ok := r.items[key]
	if !ok {
		return v, errors.New("not found")
	}
	return v, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type trace struct {
	rec  *recorder
	name string
}

func (t *trace) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	t.rec.add(t.name + " before")
	err := next(ctx)
	t.rec.add(t.name + " after")
	return err
}

type traceA struct{ *trace }
type traceB struct{ *trace }
type traceC struct{ *trace }

func newTraceA(rec *recorder, name string) *traceA { return &traceA{&trace{rec: rec, name: name}} }
func newTraceB(rec *recorder, name string) *traceB { return &traceB{&trace{rec: rec, name: name}} }
func newTraceC(rec *recorder, name string) *traceC { return &traceC{&trace{rec: rec, name: name}} }

var (
	iflyType   = reflect.TypeOf((*IFly)(nil)).Elem()
	idiveType  = reflect.TypeOf((*IDive)(nil)).Elem()
	iloadType  = reflect.TypeOf((*ILoader)(nil)).Elem()
	ijoinType  = reflect.TypeOf((*IJoiner)(nil)).Elem()
	monkeyType = reflect.TypeOf(&MonkeyKing{})
)

func testConfig(opts ...types.Option) types.Config {
	return types.NewConfig(append([]types.Option{types.WithLogger(types.DiscardLogger())}, opts...)...)
}

// newTestFactory wires a factory the way Engine does, over bare options.
func newTestFactory(config types.Config, options *AspectOptions, annotations *Annotations) *ProxyFactory {
	if options == nil {
		options = NewAspectOptions()
	}
	if annotations == nil {
		annotations = NewAnnotations()
	}
	options.useDefaultResolver(NewCompositeResolver(NewFluentResolver(options), NewAttributeResolver(annotations)))
	return NewProxyFactory(NewProxyTypeFactory(config, annotations), NewDispatcher(config, options))
}

// invocationOf builds an invocation for a member of a proxy type without a proxy.
func invocationOf(pt *ProxyType, method string, target interface{}, args ...interface{}) *types.Invocation {
	member, _ := pt.Method(method)
	return types.NewInvocation(member.Contract, member.Implementation, nil, target, args)
}
