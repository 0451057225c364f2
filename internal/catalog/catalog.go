// Package catalog reads the user-maintained service catalog
// (.incidentfox.yaml) and merges approved discoveries back into it.
package catalog

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the parsed contents of a catalog file
type Catalog struct {
	Services    map[string]Service `yaml:"services" json:"services,omitempty"`
	Alerts      map[string]Alert   `yaml:"alerts" json:"alerts,omitempty"`
	KnownIssues []KnownIssue       `yaml:"known_issues" json:"known_issues,omitempty"`

	// key order as written in the file
	serviceOrder []string
	alertOrder   []string
}

// Service describes one service in the catalog
type Service struct {
	Description     string            `yaml:"description,omitempty" json:"description,omitempty"`
	Team            string            `yaml:"team,omitempty" json:"team,omitempty"`
	Criticality     string            `yaml:"criticality,omitempty" json:"criticality,omitempty"`
	Namespace       string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Deployments     []string          `yaml:"deployments,omitempty" json:"deployments,omitempty"`
	Dependencies    []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	DataSensitivity string            `yaml:"data_sensitivity,omitempty" json:"data_sensitivity,omitempty"`
	SLA             string            `yaml:"sla,omitempty" json:"sla,omitempty"`
	Deployment      *Deployment       `yaml:"deployment,omitempty" json:"deployment,omitempty"`
	Architecture    *Architecture     `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	Notes           string            `yaml:"notes,omitempty" json:"notes,omitempty"`
	Logs            map[string]string `yaml:"logs,omitempty" json:"logs,omitempty"`
	Dashboards      map[string]string `yaml:"dashboards,omitempty" json:"dashboards,omitempty"`
	Runbooks        map[string]string `yaml:"runbooks,omitempty" json:"runbooks,omitempty"`
	Oncall          map[string]string `yaml:"oncall,omitempty" json:"oncall,omitempty"`
}

// Deployment describes how a service is shipped and rolled back
type Deployment struct {
	Method   string `yaml:"method,omitempty" json:"method,omitempty"`
	Repo     string `yaml:"repo,omitempty" json:"repo,omitempty"`
	Rollback string `yaml:"rollback,omitempty" json:"rollback,omitempty"`
}

// Architecture describes the failure-relevant shape of a service
type Architecture struct {
	Type         string   `yaml:"type,omitempty" json:"type,omitempty"`
	Patterns     []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	ExternalAPIs []string `yaml:"external_apis,omitempty" json:"external_apis,omitempty"`
}

// Alert links an alert name to a service and runbook
type Alert struct {
	Service  string `yaml:"service,omitempty" json:"service,omitempty"`
	Severity string `yaml:"severity,omitempty" json:"severity,omitempty"`
	Runbook  string `yaml:"runbook,omitempty" json:"runbook,omitempty"`
}

// KnownIssue is a recurring error pattern with its cause and fix
type KnownIssue struct {
	Pattern  string   `yaml:"pattern" json:"pattern"`
	Cause    string   `yaml:"cause,omitempty" json:"cause,omitempty"`
	Solution string   `yaml:"solution,omitempty" json:"solution,omitempty"`
	Services []string `yaml:"services,omitempty" json:"services,omitempty"`
}

// Parse decodes catalog YAML, remembering the order services and alerts
// appear in the file
func Parse(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid catalog YAML: %w", err)
	}

	c := &Catalog{}
	if len(root.Content) == 0 {
		return c, nil
	}
	if err := root.Decode(c); err != nil {
		return nil, fmt.Errorf("invalid catalog structure: %w", err)
	}

	top := root.Content[0]
	c.serviceOrder = mappingKeys(mappingValue(top, "services"))
	c.alertOrder = mappingKeys(mappingValue(top, "alerts"))
	return c, nil
}

// ServiceNames returns service names in file order
func (c *Catalog) ServiceNames() []string {
	return orderedKeys(c.Services, c.serviceOrder)
}

// AlertNames returns alert names in file order
func (c *Catalog) AlertNames() []string {
	return orderedKeys(c.Alerts, c.alertOrder)
}

func orderedKeys[V any](m map[string]V, order []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func mappingKeys(n *yaml.Node) []string {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

// mappingValue returns the value node for key in a mapping node, or nil
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
