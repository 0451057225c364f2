package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/incidentfox/incidentfox/internal/catalog"
	"github.com/incidentfox/incidentfox/internal/mcp"
	"github.com/incidentfox/incidentfox/internal/utils"
)

const (
	// CatalogURI is the resource holding the rendered service catalog
	CatalogURI = "incidentfox://catalog"

	checkQueryEchoLen = 200
)

type serviceInfoArgs struct {
	ServiceName string `json:"service_name" validate:"required"`
}

type checkKnownIssuesArgs struct {
	ErrorMessage string `json:"error_message" validate:"required"`
}

func (r *Registry) registerCatalogTools() {
	r.server.RegisterResource(mcp.Resource{
		URI:         CatalogURI,
		Name:        "Service Catalog",
		Description: "Services, alerts and known issues from .incidentfox.yaml",
		MIMEType:    "text/markdown",
	}, r.renderCatalog)

	r.server.RegisterTool(mcp.Tool{
		Name:        "get_service_info",
		Description: "Get catalog details for a service: infrastructure, dependencies, observability links, on-call and related known issues.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"service_name": stringProp("Name of the service in .incidentfox.yaml"),
		}, "service_name"),
	}, r.getServiceInfo)

	r.server.RegisterTool(mcp.Tool{
		Name:        "check_known_issues",
		Description: "Check an error message against the known issues in the service catalog.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"error_message": stringProp("Error message or symptom to check"),
		}, "error_message"),
	}, r.checkKnownIssues)
}

// loadCatalog returns nil, nil when no catalog file exists
func (r *Registry) loadCatalog() (*catalog.Catalog, error) {
	c, _, err := r.catalog.Load()
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (r *Registry) renderCatalog(ctx context.Context) (string, error) {
	c, err := r.loadCatalog()
	if err != nil {
		return "", err
	}
	if c == nil {
		return catalog.RenderMissing(), nil
	}
	return catalog.Render(c), nil
}

func (r *Registry) getServiceInfo(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in serviceInfoArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	c, err := r.loadCatalog()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if c == nil {
		return errorPayload{
			"error": "No .incidentfox.yaml found",
			"hint":  "Create a service catalog file to personalize investigations",
		}, nil
	}

	info, ok := c.ServiceInfo(in.ServiceName)
	if !ok {
		return errorPayload{
			"error":              fmt.Sprintf("Service '%s' not found in catalog", in.ServiceName),
			"available_services": c.ServiceNames(),
		}, nil
	}
	return info, nil
}

func (r *Registry) checkKnownIssues(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in checkKnownIssuesArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	c, err := r.loadCatalog()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if c == nil {
		return map[string]interface{}{
			"matches": []catalog.KnownIssueMatch{},
			"hint":    "No .incidentfox.yaml found - create one to track known issues",
		}, nil
	}

	matches := c.MatchKnownIssues(in.ErrorMessage)
	return map[string]interface{}{
		"query":       utils.Prefix(in.ErrorMessage, checkQueryEchoLen),
		"matches":     matches,
		"match_count": len(matches),
	}, nil
}
