// internal/sweep/template.go
package sweep

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

const tokenEnvVar = "HF_TOKEN"

// JobSpec holds the per-model values written into a copy of the job template.
type JobSpec struct {
	Name     string
	Image    string
	Cluster  string
	GPUCount int
	Token    string
	Command  string
}

// RenderJob decodes template afresh, fills in job and returns the YAML document.
// Fields the template carries that job does not set are kept as they are.
func RenderJob(template []byte, job JobSpec) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(template, &doc); err != nil {
		return nil, fmt.Errorf("parse job template: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("job template must be a mapping")
	}

	sets := []struct {
		path  []string
		value any
	}{
		{[]string{"description"}, job.Name},
		{[]string{"tasks", "0", "name"}, job.Name},
		{[]string{"tasks", "0", "image", "beaker"}, job.Image},
		{[]string{"tasks", "0", "context", "cluster"}, job.Cluster},
		{[]string{"tasks", "0", "context", "priority"}, "high"},
		{[]string{"tasks", "0", "resources", "gpuCount"}, job.GPUCount},
		{[]string{"tasks", "0", "arguments", "0"}, job.Command},
	}
	for _, s := range sets {
		if err := setYAMLValue(&doc, s.path, s.value); err != nil {
			return nil, fmt.Errorf("set %v: %w", s.path, err)
		}
	}
	if err := setEnvVar(&doc, tokenEnvVar, job.Token); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return buf.Bytes(), nil
}

// setYAMLValue sets a value at path, creating missing mapping keys. Numeric
// path elements index sequences; an index one past the end appends.
func setYAMLValue(node *yaml.Node, path []string, value any) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return fmt.Errorf("empty document")
		}
		return setYAMLValue(node.Content[0], path, value)
	}

	if len(path) == 0 {
		node.Kind = yaml.ScalarNode
		node.Style = 0
		node.Content = nil
		switch v := value.(type) {
		case string:
			node.Tag = "!!str"
			node.Value = v
		case int:
			node.Tag = "!!int"
			node.Value = strconv.Itoa(v)
		case bool:
			node.Tag = "!!bool"
			node.Value = strconv.FormatBool(v)
		default:
			return fmt.Errorf("unsupported value type: %T", value)
		}
		return nil
	}

	key := path[0]
	if node.Kind == yaml.SequenceNode || (node.Kind == 0 && isIndex(key)) {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return fmt.Errorf("expected sequence index, got %q", key)
		}
		node.Kind = yaml.SequenceNode
		switch {
		case idx < len(node.Content):
			return setYAMLValue(node.Content[idx], path[1:], value)
		case idx == len(node.Content):
			child := &yaml.Node{}
			node.Content = append(node.Content, child)
			return setYAMLValue(child, path[1:], value)
		default:
			return fmt.Errorf("index %d out of range (len %d)", idx, len(node.Content))
		}
	}

	if node.Kind == 0 {
		node.Kind = yaml.MappingNode
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at %q", key)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return setYAMLValue(node.Content[i+1], path[1:], value)
		}
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valueNode := &yaml.Node{}
	node.Content = append(node.Content, keyNode, valueNode)
	return setYAMLValue(valueNode, path[1:], value)
}

func isIndex(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// setEnvVar sets tasks[0].envVars[name=name].value, appending the variable when absent.
// A secret reference on the same variable is dropped in favor of the literal value.
func setEnvVar(doc *yaml.Node, name, value string) error {
	task, err := lookupPath(doc, "tasks", "0")
	if err != nil {
		return err
	}
	vars, err := lookupPath(task, "envVars")
	if err != nil {
		if err := setYAMLValue(task, []string{"envVars", "0", "name"}, name); err != nil {
			return err
		}
		return setYAMLValue(task, []string{"envVars", "0", "value"}, value)
	}
	if vars.Kind != yaml.SequenceNode {
		return fmt.Errorf("envVars must be a sequence")
	}

	for _, item := range vars.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		nameNode, err := lookupPath(item, "name")
		if err != nil || nameNode.Value != name {
			continue
		}
		deleteKey(item, "secret")
		return setYAMLValue(item, []string{"value"}, value)
	}

	idx := strconv.Itoa(len(vars.Content))
	if err := setYAMLValue(vars, []string{idx, "name"}, name); err != nil {
		return err
	}
	return setYAMLValue(vars, []string{idx, "value"}, value)
}

// lookupPath walks mapping keys and sequence indices below node.
func lookupPath(node *yaml.Node, path ...string) (*yaml.Node, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	for _, key := range path {
		switch node.Kind {
		case yaml.MappingNode:
			var next *yaml.Node
			for i := 0; i+1 < len(node.Content); i += 2 {
				if node.Content[i].Value == key {
					next = node.Content[i+1]
					break
				}
			}
			if next == nil {
				return nil, fmt.Errorf("job template has no %q", key)
			}
			node = next
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node.Content) {
				return nil, fmt.Errorf("job template has no element %q", key)
			}
			node = node.Content[idx]
		default:
			return nil, fmt.Errorf("job template: cannot descend into %q", key)
		}
	}
	return node, nil
}

func deleteKey(mapping *yaml.Node, key string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return
		}
	}
}
