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

// Package fs finds and reads aspect definition files.
package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile 加载文件，文件不存在返回nil
func LoadFile(filePath string) []byte {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil
	}
	return buf
}

// JsonPattern returns the pattern of the *.json files under folderPath. A path that already ends with
// a *.json pattern is returned unchanged.
func JsonPattern(folderPath string) string {
	if strings.HasSuffix(folderPath, "*.json") || strings.HasSuffix(folderPath, "*.JSON") {
		return folderPath
	}
	if strings.HasSuffix(folderPath, "/") || strings.HasSuffix(folderPath, "\\") {
		return folderPath + "*.json"
	}
	if folderPath == "" {
		return "./*.json"
	}
	return folderPath + "/*.json"
}

// GetFilePaths 返回匹配的文件路径列表，包括子目录。excludedPatterns 匹配的文件和子目录被跳过
func GetFilePaths(loadFilePattern string, excludedPatterns ...string) ([]string, error) {
	dir, file := filepath.Split(loadFilePattern)
	if dir == "" {
		dir = "."
	}
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && isMatch(d, excludedPatterns...) {
				return filepath.SkipDir
			}
			return nil
		}
		if matched, _ := filepath.Match(file, d.Name()); matched && !isMatch(d, excludedPatterns...) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func isMatch(d fs.DirEntry, patterns ...string) bool {
	for _, item := range patterns {
		if matched, _ := filepath.Match(item, d.Name()); matched {
			return true
		}
	}
	return false
}
