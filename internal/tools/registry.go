// Package tools registers the investigation, discovery and catalog tools on
// the MCP server.
package tools

import (
	"github.com/rs/zerolog/log"

	"github.com/incidentfox/incidentfox/internal/catalog"
	"github.com/incidentfox/incidentfox/internal/mcp"
	"github.com/incidentfox/incidentfox/internal/notify"
	"github.com/incidentfox/incidentfox/internal/services"
)

// CatalogSource provides the current service catalog
type CatalogSource interface {
	Load() (*catalog.Catalog, string, error)
}

// Deps are the collaborators the tools call into
type Deps struct {
	Investigations *services.InvestigationService
	Discoveries    *services.DiscoveryService
	Catalog        CatalogSource
	Notifications  *notify.Dispatcher
}

// Registry manages tool registration
type Registry struct {
	server         *mcp.Server
	investigations *services.InvestigationService
	discoveries    *services.DiscoveryService
	catalog        CatalogSource
	notifications  *notify.Dispatcher
}

// NewRegistry creates a new tool registry
func NewRegistry(server *mcp.Server, deps Deps) *Registry {
	notifications := deps.Notifications
	if notifications == nil {
		notifications = notify.NewDispatcher(notify.Nop{})
	}
	return &Registry{
		server:         server,
		investigations: deps.Investigations,
		discoveries:    deps.Discoveries,
		catalog:        deps.Catalog,
		notifications:  notifications,
	}
}

// RegisterAllTools registers all available tools and resources
func (r *Registry) RegisterAllTools() {
	r.registerHistoryTools()
	r.registerDiscoveryTools()
	if r.catalog != nil {
		r.registerCatalogTools()
	}
	log.Info().Strs("tools", r.server.ToolNames()).Msg("All tools registered")
}

func stringProp(description string) mcp.Property {
	return mcp.Property{Type: "string", Description: description}
}

func intProp(description string, def int) mcp.Property {
	return mcp.Property{Type: "integer", Description: description, Default: def}
}

// listProp accepts a JSON array or a string with a serialized JSON array
func listProp(description string) mcp.Property {
	return mcp.Property{
		Type:        "string",
		Description: description + ` as a JSON array, e.g. '["a", "b"]'`,
	}
}
