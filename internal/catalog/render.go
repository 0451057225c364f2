package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ExampleYAML is shown to users who have not created a catalog yet
const ExampleYAML = `services:
  payment-api:
    # === Basic Info ===
    description: "Processes all credit card transactions via Stripe"
    team: payments
    criticality: P1  # P1 (critical) / P2 (high) / P3 (medium) / P4 (low)

    # === Infrastructure ===
    namespace: production
    deployments: [payment-api, payment-worker]
    dependencies: [postgres, redis, stripe-api]

    # === Classification ===
    data_sensitivity: high  # none/low/medium/high (PII, PCI, etc.)
    sla: "99.99%"

    # === Deployment ===
    deployment:
      method: argocd  # argocd, helm, kubectl, ecs, etc.
      repo: "github.com/company/infra/apps/payment-api"
      rollback: "argocd app rollback payment-api"

    # === Architecture ===
    architecture:
      type: stateless  # stateless, stateful, event-driven
      patterns: [circuit-breaker, retry]
      external_apis: [stripe, sendgrid]

    # === Operational Notes ===
    notes: |
      - PCI compliant - never dump raw request logs
      - Peak load: 10am-2pm EST
      - Circuit breaker to inventory-service opens after 5 failures

    # === Observability ===
    logs:
      datadog: "service:payment-api"
      cloudwatch: "/aws/eks/payment-api"
    dashboards:
      grafana: "https://grafana.example.com/d/abc123"
    runbooks:
      high-latency: "./runbooks/payment-latency.md"
    oncall:
      slack: "#payment-oncall"

alerts:
  payment-high-latency:
    service: payment-api
    severity: P2
    runbook: high-latency

known_issues:
  - pattern: "ConnectionResetError.*redis"
    cause: "Redis connection pool exhaustion"
    solution: "Scale redis replicas or increase pool size"
    services: [payment-api, cart-service]
`

// RenderMissing is the resource text served when no catalog exists
func RenderMissing() string {
	var b strings.Builder
	b.WriteString("# No Service Catalog Found\n\n")
	b.WriteString("Create a `.incidentfox.yaml` file in your project root to personalize investigations.\n\n")
	b.WriteString("Example:\n```yaml\n")
	b.WriteString(ExampleYAML)
	b.WriteString("```\n")
	return b.String()
}

// Render formats the catalog as markdown for the catalog resource
func Render(c *Catalog) string {
	var b strings.Builder
	b.WriteString("# Service Catalog\n\n")

	if len(c.Services) > 0 {
		b.WriteString("## Services\n\n")
		for _, name := range c.ServiceNames() {
			renderService(&b, name, c.Services[name])
		}
	}

	if len(c.Alerts) > 0 {
		b.WriteString("## Alerts\n\n")
		for _, name := range c.AlertNames() {
			a := c.Alerts[name]
			fmt.Fprintf(&b, "### %s\n", name)
			writeIf(&b, "- Service: %s\n", a.Service)
			writeIf(&b, "- Severity: %s\n", a.Severity)
			writeIf(&b, "- Runbook: %s\n", a.Runbook)
			b.WriteString("\n")
		}
	}

	if len(c.KnownIssues) > 0 {
		b.WriteString("## Known Issues\n\n")
		for _, issue := range c.KnownIssues {
			fmt.Fprintf(&b, "### Pattern: `%s`\n", orDefault(issue.Pattern, "N/A"))
			fmt.Fprintf(&b, "- Cause: %s\n", orDefault(issue.Cause, "Unknown"))
			fmt.Fprintf(&b, "- Solution: %s\n", orDefault(issue.Solution, "N/A"))
			if len(issue.Services) > 0 {
				fmt.Fprintf(&b, "- Affected services: %s\n", strings.Join(issue.Services, ", "))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderService(b *strings.Builder, name string, s Service) {
	fmt.Fprintf(b, "### %s\n", name)
	if s.Description != "" {
		fmt.Fprintf(b, "_%s_\n\n", s.Description)
	}

	var basic []string
	if s.Criticality != "" {
		basic = append(basic, "**Criticality:** "+s.Criticality)
	}
	if s.Team != "" {
		basic = append(basic, "**Team:** "+s.Team)
	}
	if s.DataSensitivity != "" {
		basic = append(basic, "**Data Sensitivity:** "+s.DataSensitivity)
	}
	if s.SLA != "" {
		basic = append(basic, "**SLA:** "+s.SLA)
	}
	if len(basic) > 0 {
		b.WriteString(strings.Join(basic, " | "))
		b.WriteString("\n\n")
	}

	writeIf(b, "- Namespace: %s\n", s.Namespace)
	writeIf(b, "- Deployments: %s\n", strings.Join(s.Deployments, ", "))
	writeIf(b, "- Dependencies: %s\n", strings.Join(s.Dependencies, ", "))

	if d := s.Deployment; d != nil {
		b.WriteString("- Deployment:\n")
		writeIf(b, "  - Method: %s\n", d.Method)
		writeIf(b, "  - Repo: %s\n", d.Repo)
		if d.Rollback != "" {
			fmt.Fprintf(b, "  - Rollback: `%s`\n", d.Rollback)
		}
	}

	if a := s.Architecture; a != nil {
		b.WriteString("- Architecture:\n")
		writeIf(b, "  - Type: %s\n", a.Type)
		writeIf(b, "  - Patterns: %s\n", strings.Join(a.Patterns, ", "))
		writeIf(b, "  - External APIs: %s\n", strings.Join(a.ExternalAPIs, ", "))
	}

	renderMap(b, "Logs", s.Logs, "  - %s: `%s`\n")
	renderMap(b, "Dashboards", s.Dashboards, "  - %s: %s\n")
	renderMap(b, "Runbooks", s.Runbooks, "  - %s: %s\n")
	renderMap(b, "On-call", s.Oncall, "  - %s: %s\n")

	if notes := strings.TrimSpace(s.Notes); notes != "" {
		b.WriteString("- **Notes:**\n")
		for _, line := range strings.Split(notes, "\n") {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}

	b.WriteString("\n")
}

func renderMap(b *strings.Builder, title string, m map[string]string, format string) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s:\n", title)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, format, k, m[k])
	}
}

func writeIf(b *strings.Builder, format, value string) {
	if value != "" {
		fmt.Fprintf(b, format, value)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
