package descriptor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"appdeck/internal/domain/model"

	"gopkg.in/yaml.v3"
)

// AnnotationKey is the top-level extension key carrying orchestration-only
// settings. Every "x-appdeck*" key is stripped before the final write.
const AnnotationKey = "x-appdeck"

// Document is a parsed descriptor. It keeps the node tree for edits and the
// source text for positional work.
type Document struct {
	src  []byte
	doc  *yaml.Node
	root *yaml.Node
}

// Parse parses text and checks it has a "services" mapping whose services are
// mappings with a well-formed environment. Errors wrap model.ErrDescriptorParse.
func Parse(text []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDescriptorParse, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", model.ErrDescriptorParse)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", model.ErrDescriptorParse)
	}

	d := &Document{src: text, doc: &doc, root: root}

	services := Lookup(root, "services")
	if services == nil || services.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: missing services mapping", model.ErrDescriptorParse)
	}
	for i := 0; i+1 < len(services.Content); i += 2 {
		name := services.Content[i].Value
		svc := services.Content[i+1]
		if svc.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: service %q must be a mapping", model.ErrDescriptorParse, name)
		}
		if _, err := d.Environment(name); err != nil {
			return nil, fmt.Errorf("%w: service %q: %v", model.ErrDescriptorParse, name, err)
		}
	}
	return d, nil
}

// Source returns the text the document was parsed from.
func (d *Document) Source() []byte {
	return d.src
}

// Root returns the top-level mapping node.
func (d *Document) Root() *yaml.Node {
	return d.root
}

// ServiceNames returns service names in document order.
func (d *Document) ServiceNames() []string {
	services := Lookup(d.root, "services")
	names := make([]string, 0, len(services.Content)/2)
	for i := 0; i+1 < len(services.Content); i += 2 {
		names = append(names, services.Content[i].Value)
	}
	return names
}

// Service returns the mapping node of the named service, or nil.
func (d *Document) Service(name string) *yaml.Node {
	return Lookup(Lookup(d.root, "services"), name)
}

// Environment returns the environment of the named service. A service
// without one yields an empty Environment.
func (d *Document) Environment(service string) (Environment, error) {
	svc := d.Service(service)
	if svc == nil {
		return Environment{}, nil
	}
	return parseEnvironment(Lookup(svc, "environment"))
}

// Environments returns the environment values of every service.
func (d *Document) Environments() map[string]map[string]model.EnvValue {
	out := make(map[string]map[string]model.EnvValue)
	for _, name := range d.ServiceNames() {
		env, err := d.Environment(name)
		if err != nil {
			continue
		}
		out[name] = env.Values()
	}
	return out
}

// Name returns the application name declared inside the descriptor: the
// annotation's name first, then the top-level project name.
func (d *Document) Name() string {
	if n := Lookup(Lookup(d.root, AnnotationKey), "name"); n != nil && n.Kind == yaml.ScalarNode {
		return strings.TrimSpace(n.Value)
	}
	if n := Lookup(d.root, "name"); n != nil && n.Kind == yaml.ScalarNode {
		return strings.TrimSpace(n.Value)
	}
	return ""
}

// Hooks returns the inline pre- and post-install scripts from the annotation.
func (d *Document) Hooks() (preInstall, postInstall string) {
	hooks := Lookup(Lookup(d.root, AnnotationKey), "hooks")
	if n := Lookup(hooks, "pre_install"); n != nil && n.Kind == yaml.ScalarNode {
		preInstall = n.Value
	}
	if n := Lookup(hooks, "post_install"); n != nil && n.Kind == yaml.ScalarNode {
		postInstall = n.Value
	}
	return preInstall, postInstall
}

// BuildContexts returns, per service declaring "build", the build context
// directory and optional Dockerfile, relative to the descriptor.
func (d *Document) BuildContexts() map[string][2]string {
	out := make(map[string][2]string)
	for _, name := range d.ServiceNames() {
		build := Lookup(d.Service(name), "build")
		switch {
		case build == nil:
		case build.Kind == yaml.ScalarNode:
			out[name] = [2]string{build.Value, ""}
		case build.Kind == yaml.MappingNode:
			ctx, file := ".", ""
			if n := Lookup(build, "context"); n != nil {
				ctx = n.Value
			}
			if n := Lookup(build, "dockerfile"); n != nil {
				file = n.Value
			}
			out[name] = [2]string{ctx, file}
		}
	}
	return out
}

// HostPaths returns the host paths of bind mounts declared by services and
// of named volumes bound to a host device. Relative paths are resolved
// against baseDir. Order follows the document, duplicates are kept.
func (d *Document) HostPaths(baseDir string) []string {
	var paths []string
	resolve := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "~") {
			return
		}
		if !filepath.IsAbs(p) {
			if !strings.HasPrefix(p, ".") {
				return
			}
			p = filepath.Join(baseDir, p)
		}
		paths = append(paths, filepath.Clean(p))
	}

	for _, name := range d.ServiceNames() {
		volumes := Lookup(d.Service(name), "volumes")
		if volumes == nil || volumes.Kind != yaml.SequenceNode {
			continue
		}
		for _, v := range volumes.Content {
			switch v.Kind {
			case yaml.ScalarNode:
				host, _, ok := strings.Cut(v.Value, ":")
				if ok {
					resolve(host)
				}
			case yaml.MappingNode:
				t := Lookup(v, "type")
				src := Lookup(v, "source")
				if t != nil && t.Value == "bind" && src != nil {
					resolve(src.Value)
				}
			}
		}
	}

	named := Lookup(d.root, "volumes")
	if named != nil && named.Kind == yaml.MappingNode {
		for i := 1; i < len(named.Content); i += 2 {
			opts := Lookup(named.Content[i], "driver_opts")
			if dev := Lookup(opts, "device"); dev != nil && dev.Kind == yaml.ScalarNode {
				resolve(dev.Value)
			}
		}
	}
	return paths
}

// StripAnnotations removes every top-level "x-appdeck*" key.
func (d *Document) StripAnnotations() {
	content := d.root.Content[:0]
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		if strings.HasPrefix(d.root.Content[i].Value, AnnotationKey) {
			continue
		}
		content = append(content, d.root.Content[i], d.root.Content[i+1])
	}
	d.root.Content = content
}

// Serialize renders the document with two-space indentation.
func (d *Document) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.doc); err != nil {
		return nil, fmt.Errorf("failed to serialize descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to serialize descriptor: %w", err)
	}
	return buf.Bytes(), nil
}
