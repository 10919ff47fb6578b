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

package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"
)

const enginePath = "github.com/rulego/aop/engine"

var stubTemplate = template.Must(template.New("stubs").Parse(`// Code generated by aopgen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{.}}
{{- end}}
)

func init() {
{{- range .Stubs}}
	engine.RegisterStub[{{.Interface}}](func(p *engine.Proxy) {{.Interface}} { return &{{.Name}}{proxy: p} })
{{- end}}
}
{{range .Stubs}}
// {{.Name}} forwards the methods of {{.Interface}} to the proxy.
type {{.Name}} struct {
	proxy *engine.Proxy
}

func (s *{{.Name}}) AopProxy() *engine.Proxy {
	return s.proxy
}
{{range .Methods}}
func (s *{{.Stub}}) {{.Name}}({{.Params}}){{.Results}} {
{{- if .Returns}}
	out := s.proxy.Call({{.Call}})
	return {{.Returns}}
{{- else}}
	s.proxy.Call({{.Call}})
{{- end}}
}
{{end}}{{end}}`))

type fileData struct {
	Package string
	Imports []string
	Stubs   []stubData
}

type stubData struct {
	Name      string
	Interface string
	Methods   []methodData
}

type methodData struct {
	Stub    string
	Name    string
	Params  string
	Results string
	Call    string
	Returns string
}

// interfaceDecl is an interface declared in the package, with the file it is declared in.
type interfaceDecl struct {
	name string
	spec *ast.InterfaceType
	file *ast.File
}

// Generate parses the package in dir and returns the formatted source of the stubs for the named interfaces,
// all exported non-generic interfaces when names is empty. skipFile is excluded from parsing.
func Generate(dir string, names []string, skipFile string) ([]byte, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(info fs.FileInfo) bool {
		return !strings.HasSuffix(info.Name(), "_test.go") && info.Name() != skipFile
	}, 0)
	if err != nil {
		return nil, err
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("want one package in %s, found %d", dir, len(pkgs))
	}
	var pkg *ast.Package
	for _, p := range pkgs {
		pkg = p
	}

	decls := collectInterfaces(pkg)
	if len(names) == 0 {
		for name, d := range decls {
			if ast.IsExported(name) && !isGeneric(d) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no exported interface in %s", dir)
	}

	g := &generator{fset: fset, decls: decls, imports: map[string]string{}}
	data := fileData{Package: pkg.Name}
	for _, name := range names {
		d, ok := decls[name]
		if !ok {
			return nil, fmt.Errorf("interface %s not found in %s", name, dir)
		}
		if isGeneric(d) {
			return nil, fmt.Errorf("interface %s is generic, stubs are registered per instantiation", name)
		}
		stub, err := g.stub(d)
		if err != nil {
			return nil, err
		}
		data.Stubs = append(data.Stubs, stub)
	}
	data.Imports = g.importLines()

	var buf bytes.Buffer
	if err := stubTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format stubs: %w\n%s", err, buf.String())
	}
	return src, nil
}

func collectInterfaces(pkg *ast.Package) map[string]*interfaceDecl {
	decls := make(map[string]*interfaceDecl)
	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*ast.TypeSpec)
				if it, ok := ts.Type.(*ast.InterfaceType); ok {
					decls[ts.Name.Name] = &interfaceDecl{name: ts.Name.Name, spec: it, file: file}
					if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
						decls[ts.Name.Name].spec = nil
					}
				}
			}
		}
	}
	return decls
}

func isGeneric(d *interfaceDecl) bool {
	return d.spec == nil
}

type generator struct {
	fset  *token.FileSet
	decls map[string]*interfaceDecl
	// key: import path，value: import line
	imports map[string]string
}

func (g *generator) stub(d *interfaceDecl) (stubData, error) {
	stub := stubData{Name: lowerFirst(d.name) + "AopStub", Interface: d.name}
	fields, err := g.methods(d, map[string]bool{})
	if err != nil {
		return stub, err
	}
	seen := map[string]bool{}
	for _, field := range fields {
		name := field.Names[0].Name
		if seen[name] {
			continue
		}
		seen[name] = true
		m, err := g.method(field.file, name, field.Type.(*ast.FuncType))
		if err != nil {
			return stub, fmt.Errorf("%s.%s: %w", d.name, name, err)
		}
		m.Stub = stub.Name
		stub.Methods = append(stub.Methods, m)
	}
	sort.Slice(stub.Methods, func(i, j int) bool { return stub.Methods[i].Name < stub.Methods[j].Name })
	return stub, nil
}

type methodField struct {
	*ast.Field
	file *ast.File
}

// methods returns the methods of d, embedded interfaces of the same package included.
func (g *generator) methods(d *interfaceDecl, visiting map[string]bool) ([]methodField, error) {
	if visiting[d.name] {
		return nil, fmt.Errorf("interface %s embeds itself", d.name)
	}
	visiting[d.name] = true
	defer delete(visiting, d.name)

	var out []methodField
	for _, field := range d.spec.Methods.List {
		if len(field.Names) > 0 {
			if _, ok := field.Type.(*ast.FuncType); ok {
				out = append(out, methodField{Field: field, file: d.file})
			}
			continue
		}
		ident, ok := field.Type.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("interface %s embeds %s, only interfaces of the same package are supported", d.name, g.expr(field.Type))
		}
		embedded, ok := g.decls[ident.Name]
		if !ok || isGeneric(embedded) {
			return nil, fmt.Errorf("interface %s embeds unknown interface %s", d.name, ident.Name)
		}
		more, err := g.methods(embedded, visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	return out, nil
}

func (g *generator) method(file *ast.File, name string, fn *ast.FuncType) (methodData, error) {
	m := methodData{Name: name}
	var params, args []string
	i := 0
	for _, field := range fn.Params.List {
		if err := g.useImports(file, field.Type); err != nil {
			return m, err
		}
		typ := g.expr(field.Type)
		for n := 0; n < max(1, len(field.Names)); n++ {
			param := "a" + strconv.Itoa(i)
			params = append(params, param+" "+typ)
			args = append(args, param)
			i++
		}
	}
	m.Params = strings.Join(params, ", ")
	m.Call = strings.Join(append([]string{strconv.Quote(name)}, args...), ", ")

	var results, returns []string
	if fn.Results != nil {
		for _, field := range fn.Results.List {
			if err := g.useImports(file, field.Type); err != nil {
				return m, err
			}
			typ := g.expr(field.Type)
			for n := 0; n < max(1, len(field.Names)); n++ {
				returns = append(returns, fmt.Sprintf("engine.Result[%s](out, %d)", typ, len(results)))
				results = append(results, typ)
			}
		}
	}
	switch len(results) {
	case 0:
	case 1:
		m.Results = " " + results[0]
	default:
		m.Results = " (" + strings.Join(results, ", ") + ")"
	}
	m.Returns = strings.Join(returns, ", ")
	return m, nil
}

func (g *generator) expr(e ast.Expr) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, g.fset, e)
	return buf.String()
}

var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// useImports records the imports of file referenced by e.
func (g *generator) useImports(file *ast.File, e ast.Expr) error {
	var err error
	ast.Inspect(e, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		x, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		for _, spec := range file.Imports {
			importPath, _ := strconv.Unquote(spec.Path.Value)
			if spec.Name != nil {
				if spec.Name.Name == x.Name {
					g.imports[importPath] = spec.Name.Name + " " + spec.Path.Value
					return false
				}
				continue
			}
			if packageName(importPath) == x.Name {
				g.imports[importPath] = spec.Path.Value
				return false
			}
		}
		err = fmt.Errorf("no import found for %s", x.Name)
		return false
	})
	return err
}

func packageName(importPath string) string {
	base := path.Base(importPath)
	if versionSuffix.MatchString(base) {
		base = path.Base(path.Dir(importPath))
	}
	return strings.TrimPrefix(base, "go-")
}

func (g *generator) importLines() []string {
	g.imports[enginePath] = strconv.Quote(enginePath)
	paths := make([]string, 0, len(g.imports))
	for p := range g.imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	lines := make([]string, len(paths))
	for i, p := range paths {
		lines[i] = g.imports[p]
	}
	return lines
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
