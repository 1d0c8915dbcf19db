package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/service/descriptor"
	"appdeck/pkg/template"

	"gopkg.in/yaml.v3"
)

// networkEnsurer is implemented by backends that can create the shared network.
type networkEnsurer interface {
	EnsureNetwork(ctx context.Context, name string) error
}

// vars are the computed values substituted into descriptors and passed to hooks.
func (r *run) vars() map[string]string {
	cfg := r.p.config
	vars := map[string]string{
		"APPDECK_APP_ID":   r.app.ID,
		"APPDECK_APP_NAME": r.name,
		"APPDECK_APP_DIR":  cfg.GetAppDir(r.name),
		"APPDECK_DATA_DIR": cfg.GetAppDataDir(r.name),
		"APPDECK_UID":      strconv.Itoa(cfg.ServiceUID),
		"APPDECK_GID":      strconv.Itoa(cfg.ServiceGID),
	}
	if cfg.SharedNetwork != "" {
		vars["APPDECK_NETWORK"] = cfg.SharedNetwork
	}
	if r.imageRef != "" {
		vars["APPDECK_IMAGE"] = r.imageRef
	}
	return vars
}

// preprocess turns the working descriptor into the one the backend reads:
// computed values substituted, built images pinned, resource and network
// defaults added, annotations removed. The token reaches the descriptor
// through the env file as ${APPDECK_TOKEN}.
func (p *Pipeline) preprocess(ctx context.Context, r *run) error {
	text, err := template.SubstituteKnown(string(r.working), r.vars())
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDescriptorParse, err)
	}
	doc, err := descriptor.Parse([]byte(text))
	if err != nil {
		return err
	}

	attached := false
	for _, name := range doc.ServiceNames() {
		svc := doc.Service(name)
		if ref, ok := r.images[name]; ok {
			descriptor.Set(svc, "image", descriptor.StringNode(ref))
			descriptor.Delete(svc, "build")
		}
		if p.config.IsFeatureEnabled(config.FeatureResourceDefaults) {
			p.resourceDefaults(svc)
		}
		if p.attachNetwork(svc) {
			attached = true
		}
	}
	if attached {
		p.declareNetwork(doc.Root())
		if ensurer, ok := p.deps.Backend.(networkEnsurer); ok {
			if err := ensurer.EnsureNetwork(ctx, p.config.SharedNetwork); err != nil {
				r.warn(model.StagePreprocess, "Failed to ensure shared network", err)
			}
		}
	}

	r.paths = p.managedPaths(doc, p.config.GetAppDir(r.name))
	doc.StripAnnotations()
	out, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDescriptorParse, err)
	}
	r.final = out
	return nil
}

func (p *Pipeline) resourceDefaults(svc *yaml.Node) {
	limits := descriptor.Lookup(descriptor.Lookup(descriptor.Lookup(svc, "deploy"), "resources"), "limits")
	if p.config.DefaultMemLimit != "" && descriptor.Lookup(limits, "memory") == nil {
		descriptor.SetDefault(svc, "mem_limit", descriptor.StringNode(p.config.DefaultMemLimit))
	}
	if p.config.DefaultCPUs != "" && descriptor.Lookup(limits, "cpus") == nil {
		descriptor.SetDefault(svc, "cpus", descriptor.NumberOrStringNode(p.config.DefaultCPUs))
	}
}

// attachNetwork joins svc to the shared network next to its own networks.
// Services with an explicit network_mode are left alone.
func (p *Pipeline) attachNetwork(svc *yaml.Node) bool {
	shared := p.config.SharedNetwork
	if shared == "" || descriptor.Lookup(svc, "network_mode") != nil {
		return false
	}
	networks := descriptor.Lookup(svc, "networks")
	switch {
	case networks == nil:
		descriptor.Set(svc, "networks", descriptor.SequenceNode("default", shared))
	case networks.Kind == yaml.SequenceNode:
		for _, n := range networks.Content {
			if n.Value == shared {
				return true
			}
		}
		networks.Content = append(networks.Content, descriptor.StringNode(shared))
	case networks.Kind == yaml.MappingNode:
		descriptor.SetDefault(networks, shared, descriptor.MappingNode())
	default:
		return false
	}
	return true
}

func (p *Pipeline) declareNetwork(root *yaml.Node) {
	shared := p.config.SharedNetwork
	networks := descriptor.Lookup(root, "networks")
	if networks == nil || networks.Kind != yaml.MappingNode {
		networks = descriptor.MappingNode()
		descriptor.Set(root, "networks", networks)
	}
	external := descriptor.MappingNode()
	descriptor.Set(external, "external", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	descriptor.Set(external, "name", descriptor.StringNode(shared))
	descriptor.SetDefault(networks, shared, external)
}
