package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

const mavenNamespace = "http://maven.apache.org/POM/4.0.0"

var (
	gradleDependencyRe = regexp.MustCompile(`\b(?:implementation|api|compileOnly|runtimeOnly|testImplementation|testRuntimeOnly|annotationProcessor|kapt|compile|testCompile|classpath)\s*\(?\s*['"]([^'"]+)['"]`)
	gemRe              = regexp.MustCompile(`(?m)^\s*gem\s*\(?\s*['"]([^'"]+)['"]`)
	podRe              = regexp.MustCompile(`(?m)^\s*pod\s*\(?\s*['"]([^'"]+)['"]`)
)

// requirements.txt: 每行一个依赖，版本约束/extras/marker 之前的部分是包名
func parseRequirementsTxt(raw []byte) ([]string, error) {
	var deps []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimSpace(strings.TrimSuffix(line, "\\"))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if idx := strings.IndexAny(line, "=<>~!;[@# \t"); idx >= 0 {
			line = line[:idx]
		}
		// VCS / URL 形式没有包名
		if line == "" || strings.ContainsAny(line, ":/") {
			continue
		}
		deps = append(deps, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errMalformed("requirements.txt", err)
	}
	return deps, nil
}

func parsePackageJSON(raw []byte) ([]string, error) {
	var doc struct {
		Dependencies         map[string]any `json:"dependencies"`
		DevDependencies      map[string]any `json:"devDependencies"`
		PeerDependencies     map[string]any `json:"peerDependencies"`
		OptionalDependencies map[string]any `json:"optionalDependencies"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errMalformed("package.json", err)
	}
	return Union(keys(doc.Dependencies), keys(doc.DevDependencies), keys(doc.PeerDependencies), keys(doc.OptionalDependencies)), nil
}

func parseComposerJSON(raw []byte) ([]string, error) {
	var doc struct {
		Require    map[string]any `json:"require"`
		RequireDev map[string]any `json:"require-dev"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errMalformed("composer.json", err)
	}
	return Union(keys(doc.Require), keys(doc.RequireDev)), nil
}

func parsePubspecYAML(raw []byte) ([]string, error) {
	var doc struct {
		Dependencies    map[string]any `yaml:"dependencies"`
		DevDependencies map[string]any `yaml:"dev_dependencies"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errMalformed("pubspec.yaml", err)
	}
	return Union(keys(doc.Dependencies), keys(doc.DevDependencies)), nil
}

func parseCargoTOML(raw []byte) ([]string, error) {
	var doc struct {
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
		Workspace         struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"workspace"`
		Target map[string]struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
		} `toml:"target"`
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, errMalformed("Cargo.toml", err)
	}
	sets := [][]string{
		keys(doc.Dependencies),
		keys(doc.DevDependencies),
		keys(doc.BuildDependencies),
		keys(doc.Workspace.Dependencies),
	}
	for _, target := range doc.Target {
		sets = append(sets, keys(target.Dependencies), keys(target.DevDependencies))
	}
	return Union(sets...), nil
}

// go.mod: 返回完整的 module path
func parseGoMod(raw []byte) ([]string, error) {
	f, err := modfile.ParseLax("go.mod", raw, nil)
	if err != nil {
		return nil, errMalformed("go.mod", err)
	}
	deps := make([]string, 0, len(f.Require))
	for _, req := range f.Require {
		deps = append(deps, req.Mod.Path)
	}
	return deps, nil
}

// group:artifact[:version] 取 artifact
func parseGradle(raw []byte) ([]string, error) {
	var deps []string
	for _, m := range gradleDependencyRe.FindAllSubmatch(raw, -1) {
		parts := strings.Split(string(m[1]), ":")
		if len(parts) > 1 {
			deps = append(deps, parts[1])
		} else {
			deps = append(deps, parts[0])
		}
	}
	return deps, nil
}

func parseGemfile(raw []byte) ([]string, error) {
	return firstGroups(gemRe, raw), nil
}

func parsePodfile(raw []byte) ([]string, error) {
	return firstGroups(podRe, raw), nil
}

func firstGroups(re *regexp.Regexp, raw []byte) []string {
	var out []string
	for _, m := range re.FindAllSubmatch(raw, -1) {
		out = append(out, string(m[1]))
	}
	return out
}

// xmlNode 通用 DOM 节点，保留命名空间与属性
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) walk(visit func(*xmlNode)) {
	visit(n)
	for i := range n.Children {
		n.Children[i].walk(visit)
	}
}

func parseXML(format string, raw []byte) (*xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(raw, &root); err != nil {
		return nil, errMalformed(format, err)
	}
	return &root, nil
}

func isPomElement(name xml.Name, local string) bool {
	return name.Local == local && (name.Space == mavenNamespace || name.Space == "")
}

func parsePomXML(raw []byte) ([]string, error) {
	root, err := parseXML("pom.xml", raw)
	if err != nil {
		return nil, err
	}
	var deps []string
	root.walk(func(n *xmlNode) {
		if !isPomElement(n.XMLName, "dependency") {
			return
		}
		for _, child := range n.Children {
			if isPomElement(child.XMLName, "artifactId") {
				if id := strings.TrimSpace(child.Content); id != "" {
					deps = append(deps, id)
				}
				return
			}
		}
	})
	return deps, nil
}

// .csproj / .fsproj / .vbproj
func parseMSBuild(raw []byte) ([]string, error) {
	root, err := parseXML("msbuild project", raw)
	if err != nil {
		return nil, err
	}
	var deps []string
	root.walk(func(n *xmlNode) {
		switch n.XMLName.Local {
		case "PackageReference":
			if v, ok := n.attr("Include"); ok {
				deps = append(deps, v)
			}
		case "Reference":
			if v, ok := n.attr("Include"); ok {
				deps = append(deps, strings.TrimSpace(strings.SplitN(v, ",", 2)[0]))
			}
		case "Import":
			v, ok := n.attr("Project")
			if !ok || strings.Contains(strings.ToLower(v), ".targets") {
				return
			}
			if idx := strings.LastIndexAny(v, `\/`); idx >= 0 {
				v = v[idx+1:]
			}
			deps = append(deps, strings.TrimSuffix(v, ".props"))
		}
	})
	return deps, nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
