package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/incidentfox/incidentfox/internal/api"
	"github.com/incidentfox/incidentfox/internal/mcp"
	"github.com/incidentfox/incidentfox/internal/services"
	"github.com/incidentfox/incidentfox/internal/utils"
)

const similarQueryEchoLen = 100

type startArgs struct {
	Service  string `json:"service"`
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
	Tags     string `json:"tags"`
}

type addFindingArgs struct {
	InvestigationID string `json:"investigation_id" validate:"required"`
	FindingType     string `json:"finding_type" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Data            string `json:"data"`
}

type completeArgs struct {
	InvestigationID string `json:"investigation_id" validate:"required"`
	RootCause       string `json:"root_cause" validate:"required"`
	Resolution      string `json:"resolution" validate:"required"`
	Summary         string `json:"summary"`
}

type getInvestigationArgs struct {
	InvestigationID string `json:"investigation_id" validate:"required"`
}

type searchArgs struct {
	Query   string `json:"query"`
	Service string `json:"service"`
	DaysAgo *int   `json:"days_ago" validate:"omitempty,gte=1"`
	Limit   *int   `json:"limit" validate:"omitempty,gte=1,lte=500"`
}

type similarArgs struct {
	ErrorMessage string `json:"error_message"`
	Service      string `json:"service"`
	Limit        *int   `json:"limit" validate:"omitempty,gte=1,lte=100"`
}

type recordPatternArgs struct {
	Pattern  string `json:"pattern" validate:"required"`
	Cause    string `json:"cause" validate:"required"`
	Solution string `json:"solution" validate:"required"`
	Services string `json:"services"`
}

func notFound(id string) errorPayload {
	return errorResult(api.NotFoundMessage("Investigation", id))
}

func (r *Registry) registerHistoryTools() {
	r.server.RegisterTool(mcp.Tool{
		Name:        "start_investigation",
		Description: "Start a new investigation and return its ID. Call this at the beginning of an investigation to track it.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"service":  stringProp("Service being investigated"),
			"summary":  stringProp("Brief description of the issue"),
			"severity": {Type: "string", Description: "P1/P2/P3/P4 or critical/high/medium/low", Default: services.DefaultSeverity},
			"tags":     stringProp(`Comma-separated tags (e.g. "latency,database,production")`),
		}),
	}, r.startInvestigation)

	r.server.RegisterTool(mcp.Tool{
		Name:        "add_finding",
		Description: "Add a finding (metric anomaly, log error, hypothesis, ...) to an investigation.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"investigation_id": stringProp("ID from start_investigation"),
			"finding_type":     stringProp("Type of finding, e.g. metric_anomaly, log_error, config_change, hypothesis"),
			"title":            stringProp("Short title of the finding"),
			"data":             stringProp("Optional details, usually JSON"),
		}, "investigation_id", "finding_type", "title"),
	}, r.addFinding)

	r.server.RegisterTool(mcp.Tool{
		Name:        "complete_investigation",
		Description: "Complete an investigation with its root cause and resolution.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"investigation_id": stringProp("ID from start_investigation"),
			"root_cause":       stringProp("What caused the issue"),
			"resolution":       stringProp("How it was resolved"),
			"summary":          stringProp("Optional updated summary"),
		}, "investigation_id", "root_cause", "resolution"),
	}, r.completeInvestigation)

	r.server.RegisterTool(mcp.Tool{
		Name:        "get_investigation",
		Description: "Get details of a specific investigation, including its findings.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"investigation_id": stringProp("Investigation ID"),
		}, "investigation_id"),
	}, r.getInvestigation)

	r.server.RegisterTool(mcp.Tool{
		Name:        "search_investigations",
		Description: "Search past investigations by text, service and age.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"query":    stringProp("Text to search in summary, root cause, resolution and tags"),
			"service":  stringProp("Filter by service name"),
			"days_ago": intProp("How far back to search", services.DefaultSearchDays),
			"limit":    intProp("Maximum results", services.DefaultSearchLimit).Bounds(1, 500),
		}),
	}, r.searchInvestigations)

	r.server.RegisterTool(mcp.Tool{
		Name:        "find_similar_investigations",
		Description: `Find past completed investigations similar to the current issue. Useful for "have I seen this before?" queries.`,
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"error_message": stringProp("Error message to match against past investigations"),
			"service":       stringProp("Service to filter by"),
			"limit":         intProp("Maximum results", services.DefaultSimilarLimit).Bounds(1, 100),
		}),
	}, r.findSimilar)

	r.server.RegisterTool(mcp.Tool{
		Name:        "record_pattern",
		Description: "Record a symptom pattern with its cause and solution for future reference.",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"pattern":  stringProp("Pattern description or error signature"),
			"cause":    stringProp("What causes this pattern"),
			"solution": stringProp("How to fix it"),
			"services": stringProp("Comma-separated affected services"),
		}, "pattern", "cause", "solution"),
	}, r.recordPattern)

	r.server.RegisterTool(mcp.Tool{
		Name:        "get_statistics",
		Description: "Get investigation statistics: totals, status breakdown, top services and recent investigations.",
		InputSchema: mcp.ObjectSchema(nil),
	}, r.getStatistics)
}

func (r *Registry) startInvestigation(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in startArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	inv, err := r.investigations.Start(ctx, services.StartParams{
		Service:  in.Service,
		Summary:  in.Summary,
		Severity: in.Severity,
		Tags:     in.Tags,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("investigation_id", inv.ID).Str("service", in.Service).Msg("Investigation started")

	return map[string]interface{}{
		"investigation_id": inv.ID,
		"started_at":       inv.StartedAt,
		"service":          inv.Service,
		"status":           inv.Status,
		"message":          fmt.Sprintf("Investigation %s started. Use this ID to add findings and complete the investigation.", inv.ID),
	}, nil
}

func (r *Registry) addFinding(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in addFindingArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	f, err := r.investigations.AddFinding(ctx, in.InvestigationID, in.FindingType, in.Title, in.Data)
	if errors.Is(err, services.ErrInvestigationNotFound) {
		return notFound(in.InvestigationID), nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"finding_id":       f.ID,
		"investigation_id": f.InvestigationID,
		"type":             f.Type,
		"title":            f.Title,
		"timestamp":        f.Timestamp,
	}, nil
}

func (r *Registry) completeInvestigation(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in completeArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	inv, err := r.investigations.Complete(ctx, in.InvestigationID, in.RootCause, in.Resolution, in.Summary)
	if errors.Is(err, services.ErrInvestigationNotFound) {
		return notFound(in.InvestigationID), nil
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("investigation_id", inv.ID).Msg("Investigation completed")

	r.notifications.InvestigationCompleted(ctx, inv)

	return map[string]interface{}{
		"investigation_id": inv.ID,
		"status":           inv.Status,
		"root_cause":       inv.RootCause,
		"resolution":       inv.Resolution,
		"ended_at":         inv.EndedAt,
	}, nil
}

func (r *Registry) getInvestigation(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in getInvestigationArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	detail, err := r.investigations.Get(ctx, in.InvestigationID)
	if errors.Is(err, services.ErrInvestigationNotFound) {
		return notFound(in.InvestigationID), nil
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (r *Registry) searchInvestigations(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in searchArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	days := intOr(in.DaysAgo, services.DefaultSearchDays)
	found, err := r.investigations.Search(ctx, services.SearchParams{
		Query:   in.Query,
		Service: in.Service,
		DaysAgo: days,
		Limit:   intOr(in.Limit, services.DefaultSearchLimit),
	})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"query":          nullable(in.Query),
		"service":        nullable(in.Service),
		"days_ago":       days,
		"count":          len(found),
		"investigations": found,
	}, nil
}

func (r *Registry) findSimilar(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in similarArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	similar, err := r.investigations.FindSimilar(ctx, services.SimilarParams{
		ErrorMessage: in.ErrorMessage,
		Service:      in.Service,
		Limit:        intOr(in.Limit, services.DefaultSimilarLimit),
	})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"error_message": nullable(utils.Prefix(in.ErrorMessage, similarQueryEchoLen)),
			"service":       nullable(in.Service),
		},
		"similar_count":          len(similar),
		"similar_investigations": similar,
	}, nil
}

func (r *Registry) recordPattern(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in recordPatternArgs
	if res, err := bind(args, &in); res != nil || err != nil {
		return res, err
	}

	kp, created, err := r.discoveries.RecordPattern(ctx, in.Pattern, in.Cause, in.Solution, in.Services)
	if err != nil {
		return nil, err
	}

	message := "New pattern recorded"
	if !created {
		message = fmt.Sprintf("Updated existing pattern (seen %d times)", kp.OccurrenceCount)
	}
	return map[string]interface{}{
		"pattern_id": kp.ID,
		"pattern":    kp.Pattern,
		"cause":      kp.Cause,
		"solution":   kp.Solution,
		"message":    message,
	}, nil
}

func (r *Registry) getStatistics(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return r.investigations.Statistics(ctx)
}
