package catalog

import (
	"regexp"
	"strings"
)

// ServiceSummary is the identifying information for a service
type ServiceSummary struct {
	Description     string `json:"description,omitempty"`
	Criticality     string `json:"criticality,omitempty"`
	Team            string `json:"team,omitempty"`
	DataSensitivity string `json:"data_sensitivity,omitempty"`
	SLA             string `json:"sla,omitempty"`
}

// Infrastructure is where a service runs and what it calls
type Infrastructure struct {
	Namespace    string   `json:"namespace,omitempty"`
	Deployments  []string `json:"deployments"`
	Dependencies []string `json:"dependencies"`
}

// Observability points at logs, dashboards and runbooks
type Observability struct {
	Logs       map[string]string `json:"logs,omitempty"`
	Dashboards map[string]string `json:"dashboards,omitempty"`
	Runbooks   map[string]string `json:"runbooks,omitempty"`
}

// NamedAlert is an alert together with its name
type NamedAlert struct {
	Name string `json:"name"`
	Alert
}

// ServiceInfo is everything the catalog knows about one service, ordered by
// how useful it is while debugging
type ServiceInfo struct {
	Service        string            `json:"service"`
	Summary        ServiceSummary    `json:"summary"`
	Infrastructure Infrastructure    `json:"infrastructure"`
	Deployment     *Deployment       `json:"deployment,omitempty"`
	Architecture   *Architecture     `json:"architecture,omitempty"`
	Observability  Observability     `json:"observability"`
	Oncall         map[string]string `json:"oncall,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	RelatedAlerts  []NamedAlert      `json:"related_alerts"`
	KnownIssues    []KnownIssue      `json:"known_issues"`
}

// ServiceInfo looks up a service. ok is false when the service is not in
// the catalog.
func (c *Catalog) ServiceInfo(name string) (*ServiceInfo, bool) {
	s, ok := c.Services[name]
	if !ok {
		return nil, false
	}

	info := &ServiceInfo{
		Service: name,
		Summary: ServiceSummary{
			Description:     s.Description,
			Criticality:     s.Criticality,
			Team:            s.Team,
			DataSensitivity: s.DataSensitivity,
			SLA:             s.SLA,
		},
		Infrastructure: Infrastructure{
			Namespace:    s.Namespace,
			Deployments:  nonNil(s.Deployments),
			Dependencies: nonNil(s.Dependencies),
		},
		Deployment:   s.Deployment,
		Architecture: s.Architecture,
		Observability: Observability{
			Logs:       s.Logs,
			Dashboards: s.Dashboards,
			Runbooks:   s.Runbooks,
		},
		Oncall:        s.Oncall,
		Notes:         s.Notes,
		RelatedAlerts: []NamedAlert{},
		KnownIssues:   []KnownIssue{},
	}

	for _, alertName := range c.AlertNames() {
		if a := c.Alerts[alertName]; a.Service == name {
			info.RelatedAlerts = append(info.RelatedAlerts, NamedAlert{Name: alertName, Alert: a})
		}
	}
	for _, issue := range c.KnownIssues {
		for _, svc := range issue.Services {
			if svc == name {
				info.KnownIssues = append(info.KnownIssues, issue)
				break
			}
		}
	}
	return info, true
}

// KnownIssueMatch is a catalog known issue matching an error message
type KnownIssueMatch struct {
	Pattern          string   `json:"pattern"`
	Cause            string   `json:"cause"`
	Solution         string   `json:"solution"`
	AffectedServices []string `json:"affected_services"`
}

// MatchKnownIssues returns the known issues whose pattern matches message.
// Patterns are case-insensitive regular expressions; a pattern that does not
// compile is matched as a case-insensitive substring instead.
func (c *Catalog) MatchKnownIssues(message string) []KnownIssueMatch {
	matches := []KnownIssueMatch{}
	lower := strings.ToLower(message)

	for _, issue := range c.KnownIssues {
		var hit bool
		if re, err := regexp.Compile("(?i)" + issue.Pattern); err == nil {
			hit = re.MatchString(message)
		} else {
			hit = strings.Contains(lower, strings.ToLower(issue.Pattern))
		}
		if hit {
			matches = append(matches, KnownIssueMatch{
				Pattern:          issue.Pattern,
				Cause:            issue.Cause,
				Solution:         issue.Solution,
				AffectedServices: nonNil(issue.Services),
			})
		}
	}
	return matches
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
