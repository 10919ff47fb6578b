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

// Command aopgen generates typed stubs for interface contracts, so proxies can be used as the interface:
//
//	//go:generate aopgen -type IFly,IDive
//
// The generated file registers each stub with engine.RegisterStub.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const defaultOutput = "aop_stubs.go"

func main() {
	dir := flag.String("dir", ".", "package directory")
	typeNames := flag.String("type", "", "comma-separated interface names, all exported interfaces when empty")
	output := flag.String("output", "", "output file, defaults to "+defaultOutput+" in the package directory")
	flag.Parse()

	var names []string
	for _, name := range strings.Split(*typeNames, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	target := *output
	if target == "" {
		target = filepath.Join(*dir, defaultOutput)
	}

	src, err := Generate(*dir, names, filepath.Base(target))
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(target, src, 0644); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote stubs to %s", target)
}
