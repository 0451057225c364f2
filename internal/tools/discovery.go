package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/incidentfox/incidentfox/internal/mcp"
	"github.com/incidentfox/incidentfox/internal/services"
)

const syncHint = "Run `incidentfox sync-catalog` to add to .incidentfox.yaml"

type recordServiceArgs struct {
	Name        string     `json:"name" validate:"required"`
	Namespace   string     `json:"namespace"`
	Deployments stringList `json:"deployments"`
	Description string     `json:"description"`
	Team        string     `json:"team"`
	SourceTool  string     `json:"source_tool"`
}

type recordDependencyArgs struct {
	FromService string   `json:"from_service" validate:"required"`
	ToService   string   `json:"to_service" validate:"required"`
	Evidence    string   `json:"evidence"`
	Confidence  *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

type suggestKnownIssueArgs struct {
	Pattern         string     `json:"pattern" validate:"required"`
	Cause           string     `json:"cause" validate:"required"`
	Solution        string     `json:"solution" validate:"required"`
	Services        stringList `json:"services"`
	InvestigationID string     `json:"investigation_id"`
}

type markSyncedArgs struct {
	ServiceIDs    stringList `json:"service_ids"`
	DependencyIDs stringList `json:"dependency_ids"`
	KnownIssueIDs stringList `json:"known_issue_ids"`
}

func (r *Registry) registerDiscoveryTools() {
	r.server.RegisterTool(mcp.Tool{
		Name: "record_discovered_service",
		Description: "Record a service discovered during investigation that isn't in the service catalog yet. " +
			"Discoveries are reviewed and merged into .incidentfox.yaml with `incidentfox sync-catalog`.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"name":        stringProp(`Service name (e.g. "payment-api")`),
			"namespace":   stringProp(`Kubernetes namespace (e.g. "production")`),
			"deployments": listProp("Deployment names"),
			"description": stringProp("Brief description of what the service does"),
			"team":        stringProp("Team that owns the service"),
			"source_tool": stringProp(`Tool that discovered this (e.g. "list_pods")`),
		}, "name"),
	}, r.recordService)

	r.server.RegisterTool(mcp.Tool{
		Name:        "record_discovered_dependency",
		Description: "Record a dependency between services (from_service calls or depends on to_service).",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"from_service": stringProp("Service that depends on another"),
			"to_service":   stringProp("Service being depended on"),
			"evidence":     stringProp(`How this was discovered (e.g. "connection errors in logs")`),
			"confidence": mcp.Property{
				Type:        "number",
				Description: "Confidence level from 0.0 to 1.0",
				Default:     services.DefaultConfidence,
			}.Bounds(0, 1),
		}, "from_service", "to_service"),
	}, r.recordDependency)

	r.server.RegisterTool(mcp.Tool{
		Name:        "suggest_known_issue",
		Description: "Suggest a recurring issue pattern for the known_issues section of the service catalog.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"pattern":          stringProp("Error pattern or symptom"),
			"cause":            stringProp("Root cause"),
			"solution":         stringProp("How to fix it"),
			"services":         listProp("Affected service names"),
			"investigation_id": stringProp("Investigation where this was found"),
		}, "pattern", "cause", "solution"),
	}, r.suggestKnownIssue)

	r.server.RegisterTool(mcp.Tool{
		Name:        "get_pending_discoveries",
		Description: "List discoveries that have not been synced to .incidentfox.yaml yet.",
		InputSchema: mcp.ObjectSchema(nil),
	}, r.getPendingDiscoveries)

	r.server.RegisterTool(mcp.Tool{
		Name:        "mark_discoveries_synced",
		Description: "Mark discoveries as synced after adding them to .incidentfox.yaml.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"service_ids":     listProp("Service discovery IDs"),
			"dependency_ids":  listProp("Dependency discovery IDs"),
			"known_issue_ids": listProp("Known issue suggestion IDs"),
		}),
	}, r.markDiscoveriesSynced)
}

func (r *Registry) recordService(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in recordServiceArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	svc, created, err := r.discoveries.RecordService(ctx, services.ServiceObservation{
		Name:        in.Name,
		Namespace:   in.Namespace,
		Deployments: in.Deployments,
		Description: in.Description,
		Team:        in.Team,
		SourceTool:  in.SourceTool,
	})
	if err != nil {
		return nil, err
	}

	if !created {
		return map[string]interface{}{
			"status":  "updated",
			"id":      svc.ID,
			"service": svc.Name,
			"message": fmt.Sprintf("Updated existing discovery for %s", svc.Name),
		}, nil
	}
	log.Info().Str("service", svc.Name).Msg("Service discovered")
	return map[string]interface{}{
		"status":  "recorded",
		"id":      svc.ID,
		"service": svc.Name,
		"message": fmt.Sprintf("Discovered service '%s' recorded. %s", svc.Name, syncHint),
	}, nil
}

func (r *Registry) recordDependency(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in recordDependencyArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	confidence := services.DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}

	dep, created, err := r.discoveries.RecordDependency(ctx, in.FromService, in.ToService, in.Evidence, confidence)
	if err != nil {
		return nil, err
	}

	edge := fmt.Sprintf("%s -> %s", dep.FromService, dep.ToService)
	if !created {
		return map[string]interface{}{
			"status":     "updated",
			"id":         dep.ID,
			"dependency": edge,
			"confidence": dep.Confidence,
		}, nil
	}
	return map[string]interface{}{
		"status":     "recorded",
		"id":         dep.ID,
		"dependency": edge,
		"confidence": dep.Confidence,
		"message":    "Dependency recorded. " + syncHint,
	}, nil
}

func (r *Registry) suggestKnownIssue(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in suggestKnownIssueArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	issue, created, err := r.discoveries.SuggestKnownIssue(ctx, services.KnownIssueSuggestion{
		Pattern:         in.Pattern,
		Cause:           in.Cause,
		Solution:        in.Solution,
		Services:        in.Services,
		InvestigationID: in.InvestigationID,
	})
	if err != nil {
		return nil, err
	}

	if !created {
		return map[string]interface{}{
			"status":      "updated",
			"id":          issue.ID,
			"pattern":     issue.Pattern,
			"occurrences": issue.Occurrences,
			"message":     fmt.Sprintf("Pattern seen %d times. %s", issue.Occurrences, syncHint),
		}, nil
	}
	return map[string]interface{}{
		"status":  "recorded",
		"id":      issue.ID,
		"pattern": issue.Pattern,
		"message": "Known issue suggestion recorded. " + syncHint,
	}, nil
}

func (r *Registry) getPendingDiscoveries(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return r.discoveries.Pending(ctx)
}

func (r *Registry) markDiscoveriesSynced(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in markSyncedArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	counts, err := r.discoveries.MarkSynced(ctx, services.SyncRequest{
		ServiceIDs:    in.ServiceIDs,
		DependencyIDs: in.DependencyIDs,
		KnownIssueIDs: in.KnownIssueIDs,
	})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"marked_synced": counts,
		"total":         counts.Total(),
		"message":       fmt.Sprintf("Marked %d discoveries as synced", counts.Total()),
	}, nil
}
