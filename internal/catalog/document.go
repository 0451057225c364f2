package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/incidentfox/incidentfox/internal/database"
)

// Document is an editable catalog file. Edits go through the YAML node tree
// so comments and key order written by the user are kept.
type Document struct {
	root yaml.Node
}

// ParseDocument parses catalog YAML for editing. Empty input yields an empty
// catalog.
func ParseDocument(data []byte) (*Document, error) {
	d := &Document{}
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("invalid catalog YAML: %w", err)
	}
	if len(d.root.Content) == 0 {
		d.root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	if d.top().Kind != yaml.MappingNode {
		return nil, errors.New("invalid catalog structure: top level must be a mapping")
	}
	return d, nil
}

// ReadDocument loads path for editing; a missing file yields an empty catalog
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ParseDocument(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseDocument(data)
}

func (d *Document) top() *yaml.Node {
	return d.root.Content[0]
}

// Bytes encodes the document with two-space indentation
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&d.root); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with the document
func (d *Document) WriteFile(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}

	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".incidentfox-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set catalog permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}

// MergeResult reports which discoveries are now reflected in the catalog
type MergeResult struct {
	ServiceIDs    []string
	DependencyIDs []string
	KnownIssueIDs []string
	Changes       []string
}

// Changed reports whether the document was modified
func (r MergeResult) Changed() bool {
	return len(r.Changes) > 0
}

// Merge applies discoveries to the document. New services and known issues
// are added; existing services only get fields they do not have yet, so
// values written by the user are never replaced. Every discovery passed in
// is reported as applied, including ones the catalog already covered.
// A section holding something other than the expected shape is an error and
// leaves the caller free to discard the partly edited document.
func (d *Document) Merge(
	services []database.DiscoveredService,
	dependencies []database.DiscoveredDependency,
	issues []database.SuggestedKnownIssue,
) (MergeResult, error) {
	var r MergeResult

	for _, svc := range services {
		node, created, err := d.ensureService(svc.Name)
		if err != nil {
			return MergeResult{}, err
		}
		if created {
			r.Changes = append(r.Changes, "add service "+svc.Name)
		}
		for _, f := range []struct {
			key   string
			value *string
		}{
			{"description", svc.Description},
			{"team", svc.Team},
			{"namespace", svc.Namespace},
		} {
			if f.value != nil && *f.value != "" && setIfEmpty(node, f.key, scalarNode(*f.value)) && !created {
				r.Changes = append(r.Changes, fmt.Sprintf("set %s.%s", svc.Name, f.key))
			}
		}
		if len(svc.Deployments) > 0 && setIfEmpty(node, "deployments", flowSeq(svc.Deployments)) && !created {
			r.Changes = append(r.Changes, fmt.Sprintf("set %s.deployments", svc.Name))
		}
		r.ServiceIDs = append(r.ServiceIDs, svc.ID)
	}

	for _, dep := range dependencies {
		node, created, err := d.ensureService(dep.FromService)
		if err != nil {
			return MergeResult{}, err
		}
		if created {
			r.Changes = append(r.Changes, "add service "+dep.FromService)
		}
		added, err := appendUnique(node, "dependencies", dep.ToService)
		if err != nil {
			return MergeResult{}, fmt.Errorf("service %s: %w", dep.FromService, err)
		}
		if added {
			r.Changes = append(r.Changes, fmt.Sprintf("add dependency %s -> %s", dep.FromService, dep.ToService))
		}
		r.DependencyIDs = append(r.DependencyIDs, dep.ID)
	}

	for _, issue := range issues {
		added, err := d.addKnownIssue(issue)
		if err != nil {
			return MergeResult{}, err
		}
		if added {
			r.Changes = append(r.Changes, "add known issue "+issue.Pattern)
		}
		r.KnownIssueIDs = append(r.KnownIssueIDs, issue.ID)
	}

	return r, nil
}

// ensureService returns the mapping for services.<name>, creating it (and
// the services section) when missing
func (d *Document) ensureService(name string) (*yaml.Node, bool, error) {
	services, err := ensureMapping(d.top(), "services")
	if err != nil {
		return nil, false, err
	}
	if existing := mappingValue(services, name); existing != nil {
		if existing.Kind == yaml.MappingNode {
			return existing, false, nil
		}
		// `name:` with no body parses as null
		if !isEmptyNode(existing) {
			return nil, false, fmt.Errorf("catalog service %s must be a mapping, found %s", name, kindName(existing))
		}
		*existing = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		return existing, false, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	services.Content = append(services.Content, scalarNode(name), node)
	return node, true, nil
}

func (d *Document) addKnownIssue(issue database.SuggestedKnownIssue) (bool, error) {
	top := d.top()
	seq := mappingValue(top, "known_issues")
	switch {
	case seq == nil:
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		top.Content = append(top.Content, scalarNode("known_issues"), seq)
	case seq.Kind != yaml.SequenceNode:
		if !isEmptyNode(seq) {
			return false, fmt.Errorf("catalog known_issues must be a list, found %s", kindName(seq))
		}
		*seq = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}

	for _, item := range seq.Content {
		if p := mappingValue(item, "pattern"); p != nil && p.Value == issue.Pattern {
			return false, nil
		}
	}

	entry := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	entry.Content = append(entry.Content, scalarNode("pattern"), quotedNode(issue.Pattern))
	if issue.Cause != "" {
		entry.Content = append(entry.Content, scalarNode("cause"), scalarNode(issue.Cause))
	}
	if issue.Solution != "" {
		entry.Content = append(entry.Content, scalarNode("solution"), scalarNode(issue.Solution))
	}
	if len(issue.Services) > 0 {
		entry.Content = append(entry.Content, scalarNode("services"), flowSeq(issue.Services))
	}
	seq.Content = append(seq.Content, entry)
	return true, nil
}

// ensureMapping returns the mapping at key, adding it when missing or empty
func ensureMapping(parent *yaml.Node, key string) (*yaml.Node, error) {
	existing := mappingValue(parent, key)
	if existing == nil {
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		parent.Content = append(parent.Content, scalarNode(key), node)
		return node, nil
	}
	if existing.Kind == yaml.MappingNode {
		return existing, nil
	}
	if !isEmptyNode(existing) {
		return nil, fmt.Errorf("catalog %s must be a mapping, found %s", key, kindName(existing))
	}
	*existing = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	return existing, nil
}

// setIfEmpty sets key to value unless it already holds something
func setIfEmpty(m *yaml.Node, key string, value *yaml.Node) bool {
	existing := mappingValue(m, key)
	if existing == nil {
		m.Content = append(m.Content, scalarNode(key), value)
		return true
	}
	if isEmptyNode(existing) {
		*existing = *value
		return true
	}
	return false
}

// appendUnique adds value to the sequence at key unless already present
func appendUnique(m *yaml.Node, key, value string) (bool, error) {
	seq := mappingValue(m, key)
	if seq == nil {
		m.Content = append(m.Content, scalarNode(key), flowSeq([]string{value}))
		return true, nil
	}
	if seq.Kind != yaml.SequenceNode {
		if !isEmptyNode(seq) {
			return false, fmt.Errorf("%s must be a list, found %s", key, kindName(seq))
		}
		*seq = *flowSeq(nil)
	}
	for _, item := range seq.Content {
		if item.Value == value {
			return false, nil
		}
	}
	seq.Content = append(seq.Content, scalarNode(value))
	return true, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return fmt.Sprintf("scalar %q", n.Value)
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.AliasNode:
		return "an alias"
	}
	return "an unknown node"
}

func isEmptyNode(n *yaml.Node) bool {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Tag == "!!null" || n.Value == ""
	case yaml.SequenceNode, yaml.MappingNode:
		return len(n.Content) == 0
	}
	return false
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func quotedNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle}
}

func flowSeq(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, scalarNode(v))
	}
	return seq
}
