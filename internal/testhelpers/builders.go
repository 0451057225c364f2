package testhelpers

import (
	"testing"
	"time"

	"github.com/incidentfox/incidentfox/internal/database"

	"gorm.io/gorm"
)

// ========================================
// Investigation Builder
// ========================================

// InvestigationBuilder builds Investigation rows for testing
type InvestigationBuilder struct {
	inv database.Investigation
}

// NewInvestigationBuilder creates a builder for an in-progress investigation
func NewInvestigationBuilder() *InvestigationBuilder {
	return &InvestigationBuilder{
		inv: database.Investigation{
			ID:        database.NewID(),
			StartedAt: time.Now().UTC(),
			Severity:  "unknown",
			Status:    database.InvestigationStatusInProgress,
		},
	}
}

// WithID sets the investigation ID
func (b *InvestigationBuilder) WithID(id string) *InvestigationBuilder {
	b.inv.ID = id
	return b
}

// WithService sets the service
func (b *InvestigationBuilder) WithService(service string) *InvestigationBuilder {
	b.inv.Service = &service
	return b
}

// WithSummary sets the summary
func (b *InvestigationBuilder) WithSummary(summary string) *InvestigationBuilder {
	b.inv.Summary = &summary
	return b
}

// WithTags sets the comma-separated tags
func (b *InvestigationBuilder) WithTags(tags string) *InvestigationBuilder {
	b.inv.Tags = &tags
	return b
}

// WithSeverity sets the severity
func (b *InvestigationBuilder) WithSeverity(severity string) *InvestigationBuilder {
	b.inv.Severity = severity
	return b
}

// StartedAt sets the start time
func (b *InvestigationBuilder) StartedAt(t time.Time) *InvestigationBuilder {
	b.inv.StartedAt = t.UTC()
	return b
}

// Completed marks the investigation completed with a root cause and resolution
func (b *InvestigationBuilder) Completed(rootCause, resolution string) *InvestigationBuilder {
	ended := b.inv.StartedAt.Add(time.Hour)
	b.inv.Status = database.InvestigationStatusCompleted
	b.inv.RootCause = &rootCause
	b.inv.Resolution = &resolution
	b.inv.EndedAt = &ended
	return b
}

// Build returns the investigation
func (b *InvestigationBuilder) Build() database.Investigation {
	return b.inv
}

// Create inserts the investigation and returns it
func (b *InvestigationBuilder) Create(t *testing.T, db *gorm.DB) database.Investigation {
	t.Helper()
	inv := b.Build()
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("failed to create investigation: %v", err)
	}
	return inv
}

// ========================================
// Discovered Service Builder
// ========================================

// DiscoveredServiceBuilder builds DiscoveredService rows for testing
type DiscoveredServiceBuilder struct {
	svc database.DiscoveredService
}

// NewDiscoveredServiceBuilder creates a builder with defaults
func NewDiscoveredServiceBuilder(name string) *DiscoveredServiceBuilder {
	return &DiscoveredServiceBuilder{
		svc: database.DiscoveredService{
			ID:           database.NewID(),
			Name:         name,
			DiscoveredAt: time.Now().UTC(),
		},
	}
}

// WithNamespace sets the namespace
func (b *DiscoveredServiceBuilder) WithNamespace(ns string) *DiscoveredServiceBuilder {
	b.svc.Namespace = &ns
	return b
}

// WithDeployments sets the deployments
func (b *DiscoveredServiceBuilder) WithDeployments(deployments ...string) *DiscoveredServiceBuilder {
	b.svc.Deployments = database.StringList(deployments)
	return b
}

// WithDescription sets the description
func (b *DiscoveredServiceBuilder) WithDescription(desc string) *DiscoveredServiceBuilder {
	b.svc.Description = &desc
	return b
}

// WithTeam sets the team
func (b *DiscoveredServiceBuilder) WithTeam(team string) *DiscoveredServiceBuilder {
	b.svc.Team = &team
	return b
}

// Build returns the discovered service
func (b *DiscoveredServiceBuilder) Build() database.DiscoveredService {
	return b.svc
}

// ========================================
// Pending Discoveries Fixture
// ========================================

// DependencyRow builds an unsynced dependency
func DependencyRow(from, to string, confidence float64) database.DiscoveredDependency {
	return database.DiscoveredDependency{
		ID:           database.NewID(),
		FromService:  from,
		ToService:    to,
		Confidence:   confidence,
		DiscoveredAt: time.Now().UTC(),
	}
}

// KnownIssueRow builds an unsynced known-issue suggestion
func KnownIssueRow(pattern, cause, solution string, services ...string) database.SuggestedKnownIssue {
	return database.SuggestedKnownIssue{
		ID:               database.NewID(),
		Pattern:          pattern,
		Cause:            cause,
		Solution:         solution,
		Services:         database.StringList(services),
		Occurrences:      1,
		InvestigationIDs: database.StringList{},
		DiscoveredAt:     time.Now().UTC(),
	}
}
