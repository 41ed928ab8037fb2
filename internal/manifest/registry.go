// Package manifest 把各生态的依赖清单文件解析成依赖名集合
package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Parser 把清单原文解析成依赖名；返回 error 时结果被丢弃
type Parser func(raw []byte) ([]string, error)

// Format 一种清单格式：按文件名精确匹配，或按扩展名匹配
type Format struct {
	ID         string
	Filename   string   // 精确文件名，例如 "go.mod"
	Extensions []string // 小写扩展名，例如 ".csproj"
	parse      Parser
}

// Matches 判断文件名是否属于这种格式
func (f Format) Matches(filename string) bool {
	if f.Filename != "" {
		return filename == f.Filename
	}
	lower := strings.ToLower(filename)
	for _, ext := range f.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Registry 清单格式表；新增生态只需注册一条 (匹配规则, 解析器)
type Registry struct {
	formats []Format
	byID    map[string]int
	log     *logrus.Entry
}

// NewRegistry 返回内置全部格式的注册表
func NewRegistry() *Registry {
	r := &Registry{
		byID: make(map[string]int),
		log:  logrus.WithField("component", "manifest"),
	}
	r.Register(Format{ID: "requirements.txt", Filename: "requirements.txt", parse: parseRequirementsTxt})
	r.Register(Format{ID: "package.json", Filename: "package.json", parse: parsePackageJSON})
	r.Register(Format{ID: "composer.json", Filename: "composer.json", parse: parseComposerJSON})
	r.Register(Format{ID: "pubspec.yaml", Filename: "pubspec.yaml", parse: parsePubspecYAML})
	r.Register(Format{ID: "pom.xml", Filename: "pom.xml", parse: parsePomXML})
	r.Register(Format{ID: "build.gradle", Filename: "build.gradle", parse: parseGradle})
	r.Register(Format{ID: "Gemfile", Filename: "Gemfile", parse: parseGemfile})
	r.Register(Format{ID: "go.mod", Filename: "go.mod", parse: parseGoMod})
	r.Register(Format{ID: "Cargo.toml", Filename: "Cargo.toml", parse: parseCargoTOML})
	r.Register(Format{ID: "Podfile", Filename: "Podfile", parse: parsePodfile})
	r.Register(Format{ID: "msbuild", Extensions: []string{".csproj", ".fsproj", ".vbproj"}, parse: parseMSBuild})
	r.Register(Format{ID: "gradle", Extensions: []string{".gradle.kts", ".gradle"}, parse: parseGradle})
	return r
}

// Register 注册一种格式；ID 重复时覆盖旧的
func (r *Registry) Register(f Format) {
	if idx, ok := r.byID[f.ID]; ok {
		r.formats[idx] = f
		return
	}
	r.byID[f.ID] = len(r.formats)
	r.formats = append(r.formats, f)
}

// WithParser 用于注册自定义格式
func (f Format) WithParser(p Parser) Format {
	f.parse = p
	return f
}

// Formats 按注册顺序返回全部格式
func (r *Registry) Formats() []Format {
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Lookup 先按精确文件名匹配，再按扩展名匹配
func (r *Registry) Lookup(filename string) (Format, bool) {
	for _, f := range r.formats {
		if f.Filename != "" && f.Filename == filename {
			return f, true
		}
	}
	for _, f := range r.formats {
		if f.Filename == "" && f.Matches(filename) {
			return f, true
		}
	}
	return Format{}, false
}

// Parse 解析一个清单；永不失败，异常输入返回空集合并记录警告
func (r *Registry) Parse(formatID string, raw []byte) (deps []string) {
	idx, ok := r.byID[formatID]
	if !ok || r.formats[idx].parse == nil {
		r.log.Warnf("⚠️ 未知的清单格式: %s", formatID)
		return []string{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warnf("⚠️ 解析 %s 时发生 panic: %v", formatID, rec)
			deps = []string{}
		}
	}()

	parsed, err := r.formats[idx].parse(raw)
	if err != nil {
		r.log.Warnf("⚠️ 无法解析 %s: %v", formatID, err)
		return []string{}
	}
	return Union(parsed)
}

// Union 合并多个依赖集合：去空白、去重 (区分大小写)、排序
func Union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, set := range sets {
		for _, dep := range set {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	sort.Strings(out)
	return out
}

func errMalformed(format string, err error) error {
	return fmt.Errorf("malformed %s: %w", format, err)
}
