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
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rulego/aop/api/types"
	utilsReflect "github.com/rulego/aop/utils/reflect"
	"golang.org/x/sync/singleflight"
)

var sealedType = reflect.TypeOf((*types.Sealed)(nil)).Elem()

// ProxyKind is the shape of a synthesized proxy type.
type ProxyKind int

const (
	// InterfaceProxy has no implementation, every member is a pure interception stub.
	InterfaceProxy ProxyKind = iota + 1
	// InterfaceImplProxy forwards an interface contract to an implementation type.
	InterfaceImplProxy
	// ClassProxy overrides every exported method of a struct contract.
	ClassProxy
)

func (k ProxyKind) String() string {
	switch k {
	case InterfaceProxy:
		return "interface"
	case InterfaceImplProxy:
		return "interfaceImpl"
	case ClassProxy:
		return "class"
	default:
		return "unknown"
	}
}

// ProxyMethod is one member of a proxy type.
type ProxyMethod struct {
	// Contract is the contract method, the invocation's ProxyMethod.
	Contract *types.MethodInfo
	// Implementation is the concrete method, nil for interface-only proxies.
	Implementation *types.MethodInfo
}

// ProxyType is the forwarding definition synthesized once per (contract, implementation) pair.
// It enumerates the members of the contract and maps each one to the method the dispatch engine forwards to.
type ProxyType struct {
	// Name is `aop.dynamic.<contract>[.<implementation>]`.
	Name string
	// Kind is the proxy shape.
	Kind ProxyKind
	// Contract is the interface or the pointer to struct being proxied.
	Contract reflect.Type
	// Implementation is the pointer to struct called by the terminal operation, nil for interface-only proxies.
	Implementation reflect.Type
	// GenericArguments are the type arguments of an instantiated generic contract.
	GenericArguments []string

	methods    []*ProxyMethod
	byName     map[string]*ProxyMethod
	properties map[string]*PropertyDef
	ignored    map[string]struct{}
}

// Methods returns the members sorted by name.
func (pt *ProxyType) Methods() []*ProxyMethod {
	return append([]*ProxyMethod(nil), pt.methods...)
}

// Method returns the member by name.
func (pt *ProxyType) Method(name string) (*ProxyMethod, bool) {
	m, ok := pt.byName[name]
	return m, ok
}

// Property returns a recognised property by name.
func (pt *ProxyType) Property(name string) (*PropertyDef, bool) {
	p, ok := pt.properties[name]
	return p, ok
}

// IsIgnored reports whether the contract declares name but the proxy does not intercept it.
func (pt *ProxyType) IsIgnored(name string) bool {
	_, ok := pt.ignored[name]
	return ok
}

func (pt *ProxyType) String() string {
	return pt.Name
}

type proxyTypeKey struct {
	contract       reflect.Type
	implementation reflect.Type
}

// ProxyTypeFactory synthesizes proxy types and memoizes them for the lifetime of the factory.
// Concurrent first requests for one key converge on a single synthesis.
//
// ProxyTypeFactory 代理类型工厂，每个 (契约, 实现) 只生成一次。
type ProxyTypeFactory struct {
	config      types.Config
	annotations *Annotations
	cache       sync.Map
	group       singleflight.Group
	created     int64
}

// NewProxyTypeFactory creates a factory. annotations may be nil.
func NewProxyTypeFactory(config types.Config, annotations *Annotations) *ProxyTypeFactory {
	if annotations == nil {
		annotations = NewAnnotations()
	}
	return &ProxyTypeFactory{config: config, annotations: annotations}
}

// Created returns how many proxy types were synthesized.
func (f *ProxyTypeFactory) Created() int64 {
	return atomic.LoadInt64(&f.created)
}

// CreateProxyType returns the proxy type of contract, implemented by implementation.
// implementation may be nil. A struct type is normalized to its pointer type.
func (f *ProxyTypeFactory) CreateProxyType(contract, implementation reflect.Type) (*ProxyType, error) {
	if contract == nil {
		return nil, types.ErrNilType
	}
	contract = normalizeType(contract)
	implementation = normalizeType(implementation)
	key := proxyTypeKey{contract: contract, implementation: implementation}
	if v, ok := f.cache.Load(key); ok {
		return v.(*ProxyType), nil
	}
	//reflect.Type 是指针，同名的局部类型也不会冲突
	flightKey := fmt.Sprintf("%p/%p", contract, implementation)
	v, err, _ := f.group.Do(flightKey, func() (interface{}, error) {
		if v, ok := f.cache.Load(key); ok {
			return v, nil
		}
		pt, err := f.synthesize(contract, implementation)
		if err != nil {
			return nil, err
		}
		f.cache.Store(key, pt)
		atomic.AddInt64(&f.created, 1)
		return pt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProxyType), nil
}

func normalizeType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Struct {
		return reflect.PtrTo(t)
	}
	return t
}

// checkSealed rejects types that can not be proxied.
func checkSealed(t reflect.Type) error {
	switch {
	case t.Kind() == reflect.Interface:
		if t != sealedType && t.Implements(sealedType) {
			return fmt.Errorf("%w: %s", types.ErrSealedType, t)
		}
		return nil
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		if t.Implements(sealedType) {
			return fmt.Errorf("%w: %s", types.ErrSealedType, t)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", types.ErrSealedType, t)
	}
}

func (f *ProxyTypeFactory) synthesize(contract, implementation reflect.Type) (*ProxyType, error) {
	if err := checkSealed(contract); err != nil {
		return nil, err
	}
	if implementation != nil {
		if err := checkSealed(implementation); err != nil {
			return nil, err
		}
		if implementation.Kind() == reflect.Interface {
			return nil, fmt.Errorf("%w: %s", types.ErrNotStruct, implementation)
		}
	}

	pt := &ProxyType{
		Contract:       contract,
		Implementation: implementation,
		byName:         make(map[string]*ProxyMethod),
		ignored:        make(map[string]struct{}),
	}
	switch {
	case contract.Kind() == reflect.Interface && implementation == nil:
		pt.Kind = InterfaceProxy
	case contract.Kind() == reflect.Interface:
		pt.Kind = InterfaceImplProxy
		if !implementation.Implements(contract) {
			return nil, fmt.Errorf("%w: %s does not implement %s", types.ErrNotImplemented, implementation, contract)
		}
	default:
		pt.Kind = ClassProxy
		if implementation == nil {
			implementation = contract
			pt.Implementation = contract
		}
	}

	for i := 0; i < contract.NumMethod(); i++ {
		m := contract.Method(i)
		if pt.Kind == ClassProxy && f.config.IsIgnored(m.Name) {
			pt.ignored[m.Name] = struct{}{}
			continue
		}
		member := &ProxyMethod{Contract: newMethodInfo(contract, m)}
		f.annotations.copyTo(member.Contract)
		if implementation != nil {
			if implementation == contract {
				member.Implementation = member.Contract
			} else {
				im, ok := hasMethod(implementation, SignatureOf(member.Contract))
				if !ok {
					return nil, fmt.Errorf("%w: %s has no method %s", types.ErrNotImplemented, implementation, SignatureOf(member.Contract))
				}
				member.Implementation = newMethodInfo(implementation, im)
				f.annotations.copyTo(member.Implementation)
			}
		}
		pt.methods = append(pt.methods, member)
		pt.byName[m.Name] = member
	}
	sort.Slice(pt.methods, func(i, j int) bool {
		return pt.methods[i].Contract.Name < pt.methods[j].Contract.Name
	})

	pt.properties = propertiesOf(contract)
	for _, prop := range pt.properties {
		for accessor, kind := range map[string]types.PropertyKind{prop.Getter: types.Getter, prop.Setter: types.Setter} {
			member, ok := pt.byName[accessor]
			if accessor == "" || !ok {
				continue
			}
			info := &types.PropertyInfo{Name: prop.Name, Kind: kind, Type: prop.Type}
			member.Contract.Property = info
			if member.Implementation != nil {
				member.Implementation.Property = info
			}
		}
	}

	pt.GenericArguments = utilsReflect.TypeArguments(contract)
	if len(pt.GenericArguments) == 0 && implementation != nil {
		pt.GenericArguments = utilsReflect.TypeArguments(implementation)
	}
	pt.Name = proxyTypeName(contract, implementation)
	return pt, nil
}

func proxyTypeName(contract, implementation reflect.Type) string {
	name := types.ProxyTypeNamePrefix + "." + utilsReflect.Indirect(contract).Name()
	if implementation != nil && implementation != contract {
		name += "." + utilsReflect.Indirect(implementation).Name()
	}
	return name
}
