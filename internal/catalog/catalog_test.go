package catalog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Example(t *testing.T) {
	c, err := Parse([]byte(ExampleYAML))
	require.NoError(t, err)

	require.Contains(t, c.Services, "payment-api")
	svc := c.Services["payment-api"]
	assert.Equal(t, "payments", svc.Team)
	assert.Equal(t, "P1", svc.Criticality)
	assert.Equal(t, "99.99%", svc.SLA)
	assert.Equal(t, []string{"payment-api", "payment-worker"}, svc.Deployments)
	assert.Equal(t, []string{"postgres", "redis", "stripe-api"}, svc.Dependencies)
	require.NotNil(t, svc.Deployment)
	assert.Equal(t, "argocd app rollback payment-api", svc.Deployment.Rollback)
	require.NotNil(t, svc.Architecture)
	assert.Equal(t, []string{"stripe", "sendgrid"}, svc.Architecture.ExternalAPIs)
	assert.Contains(t, svc.Notes, "PCI compliant")
	assert.Equal(t, "#payment-oncall", svc.Oncall["slack"])

	assert.Equal(t, "payment-api", c.Alerts["payment-high-latency"].Service)
	require.Len(t, c.KnownIssues, 1)
	assert.Equal(t, "ConnectionResetError.*redis", c.KnownIssues[0].Pattern)
}

func TestParse_KeepsFileOrder(t *testing.T) {
	c, err := Parse([]byte(`
services:
  zeta: {team: z}
  alpha: {team: a}
  mid: {}
alerts:
  second-alert: {service: zeta}
  first-alert: {service: alpha}
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, c.ServiceNames())
	assert.Equal(t, []string{"second-alert", "first-alert"}, c.AlertNames())
}

func TestParse_NumericScalarsAsStrings(t *testing.T) {
	c, err := Parse([]byte("services:\n  api:\n    sla: 99.9\n    criticality: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "99.9", c.Services["api"].SLA)
	assert.Equal(t, "1", c.Services["api"].Criticality)
}

func TestParse_EmptyAndInvalid(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, c.Services)

	_, err = Parse([]byte("services: [unterminated"))
	assert.Error(t, err)

	_, err = Parse([]byte("services: just-a-string"))
	assert.Error(t, err)
}

func TestServiceNames_UnorderedCatalogIsSorted(t *testing.T) {
	c := &Catalog{Services: map[string]Service{"b": {}, "a": {}, "c": {}}}
	assert.Equal(t, []string{"a", "b", "c"}, c.ServiceNames())
}

func TestServiceInfo(t *testing.T) {
	c, err := Parse([]byte(ExampleYAML))
	require.NoError(t, err)

	info, ok := c.ServiceInfo("payment-api")
	require.True(t, ok)
	assert.Equal(t, "payment-api", info.Service)
	assert.Equal(t, "Processes all credit card transactions via Stripe", info.Summary.Description)
	assert.Equal(t, "production", info.Infrastructure.Namespace)
	require.Len(t, info.RelatedAlerts, 1)
	assert.Equal(t, "payment-high-latency", info.RelatedAlerts[0].Name)
	assert.Equal(t, "P2", info.RelatedAlerts[0].Severity)
	require.Len(t, info.KnownIssues, 1)

	_, ok = c.ServiceInfo("unknown")
	assert.False(t, ok)
}

func TestServiceInfo_JSONShape(t *testing.T) {
	c, err := Parse([]byte("services:\n  bare: {}\n"))
	require.NoError(t, err)

	info, ok := c.ServiceInfo("bare")
	require.True(t, ok)

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "bare", out["service"])
	assert.NotContains(t, out, "deployment")
	assert.NotContains(t, out, "notes")
	assert.Equal(t, map[string]interface{}{"deployments": []interface{}{}, "dependencies": []interface{}{}}, out["infrastructure"])
	assert.Equal(t, []interface{}{}, out["related_alerts"])
	assert.Equal(t, []interface{}{}, out["known_issues"])
}

func TestMatchKnownIssues(t *testing.T) {
	c := &Catalog{KnownIssues: []KnownIssue{
		{Pattern: "ConnectionResetError.*redis", Cause: "pool", Solution: "scale", Services: []string{"payment-api"}},
		{Pattern: "OOMKilled", Cause: "memory"},
		{Pattern: "(unclosed group", Cause: "literal"},
	}}

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"regex case-insensitive", "connectionreseterror while talking to REDIS", []string{"ConnectionResetError.*redis"}},
		{"plain pattern", "pod payment-api-123 OOMKilled", []string{"OOMKilled"}},
		{"invalid regex falls back to substring", "saw an (UNCLOSED GROUP in output", []string{"(unclosed group"}},
		{"no match", "everything is fine", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := c.MatchKnownIssues(tt.message)
			var got []string
			for _, m := range matches {
				got = append(got, m.Pattern)
				assert.NotNil(t, m.AffectedServices)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	c, err := Parse([]byte(ExampleYAML))
	require.NoError(t, err)

	out := Render(c)
	for _, want := range []string{
		"# Service Catalog",
		"## Services",
		"### payment-api",
		"_Processes all credit card transactions via Stripe_",
		"**Criticality:** P1 | **Team:** payments | **Data Sensitivity:** high | **SLA:** 99.99%",
		"- Deployments: payment-api, payment-worker",
		"  - Rollback: `argocd app rollback payment-api`",
		"  - External APIs: stripe, sendgrid",
		"  - cloudwatch: `/aws/eks/payment-api`",
		"- On-call:\n  - slack: #payment-oncall",
		"- **Notes:**\n  - PCI compliant",
		"## Alerts",
		"- Severity: P2",
		"### Pattern: `ConnectionResetError.*redis`",
		"- Affected services: payment-api, cart-service",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "## Services"), strings.Index(out, "## Alerts"))
	assert.Less(t, strings.Index(out, "## Alerts"), strings.Index(out, "## Known Issues"))
}

func TestRender_KnownIssueDefaults(t *testing.T) {
	out := Render(&Catalog{KnownIssues: []KnownIssue{{}}})
	assert.Contains(t, out, "### Pattern: `N/A`")
	assert.Contains(t, out, "- Cause: Unknown")
}

func TestRenderMissing(t *testing.T) {
	out := RenderMissing()
	assert.True(t, strings.HasPrefix(out, "# No Service Catalog Found"))
	assert.Contains(t, out, "```yaml\nservices:")
	assert.Contains(t, out, "known_issues:")
}
