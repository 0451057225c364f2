package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/incidentfox/incidentfox/internal/database"

	"gorm.io/gorm"
)

// DefaultConfidence is used when a dependency is recorded without one
const DefaultConfidence = 0.5

// DiscoveryService records known patterns and catalog discoveries made during
// investigations, and tracks which discoveries were synced to the catalog.
// Every upsert runs its lookup and write in one transaction.
type DiscoveryService struct {
	db   *gorm.DB
	opts options
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(db *gorm.DB, opts ...Option) *DiscoveryService {
	return &DiscoveryService{db: db, opts: newOptions(opts)}
}

// RecordPattern inserts a known pattern or, if the pattern text already
// exists, bumps its occurrence count and replaces cause and solution.
// Reports whether a new row was created.
func (s *DiscoveryService) RecordPattern(ctx context.Context, pattern, cause, solution, services string) (*database.KnownPattern, bool, error) {
	now := s.opts.utcNow()
	var kp database.KnownPattern
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("pattern = ?", pattern).First(&kp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			kp = database.KnownPattern{
				ID:              database.NewID(),
				Pattern:         pattern,
				Cause:           cause,
				Solution:        solution,
				Services:        optionalString(services),
				OccurrenceCount: 1,
				LastSeen:        now,
				CreatedAt:       now,
			}
			return tx.Create(&kp).Error
		}
		if err != nil {
			return err
		}

		kp.OccurrenceCount++
		kp.LastSeen = now
		kp.Cause = cause
		kp.Solution = solution
		return tx.Model(&kp).Updates(map[string]interface{}{
			"occurrence_count": gorm.Expr("occurrence_count + 1"),
			"last_seen":        now,
			"cause":            cause,
			"solution":         solution,
		}).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to record pattern: %w", err)
	}
	return &kp, created, nil
}

// ServiceObservation is a service seen while investigating
type ServiceObservation struct {
	Name        string
	Namespace   string
	Deployments []string
	Description string
	Team        string
	SourceTool  string
}

// RecordService inserts a discovered service or merges a repeat sighting into
// the existing row. Namespace and deployments are only filled when still
// empty; description and team are replaced whenever given.
func (s *DiscoveryService) RecordService(ctx context.Context, obs ServiceObservation) (*database.DiscoveredService, bool, error) {
	var svc database.DiscoveredService
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", obs.Name).First(&svc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			svc = database.DiscoveredService{
				ID:           database.NewID(),
				Name:         obs.Name,
				Namespace:    optionalString(obs.Namespace),
				Description:  optionalString(obs.Description),
				Team:         optionalString(obs.Team),
				DiscoveredAt: s.opts.utcNow(),
				SourceTool:   optionalString(obs.SourceTool),
			}
			if len(obs.Deployments) > 0 {
				svc.Deployments = database.StringList(obs.Deployments)
			}
			return tx.Create(&svc).Error
		}
		if err != nil {
			return err
		}

		changed := false
		if obs.Namespace != "" && (svc.Namespace == nil || *svc.Namespace == "") {
			svc.Namespace = &obs.Namespace
			changed = true
		}
		if len(obs.Deployments) > 0 && len(svc.Deployments) == 0 {
			svc.Deployments = database.StringList(obs.Deployments)
			changed = true
		}
		if obs.Description != "" {
			svc.Description = &obs.Description
			changed = true
		}
		if obs.Team != "" {
			svc.Team = &obs.Team
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.Save(&svc).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to record service %s: %w", obs.Name, err)
	}
	return &svc, created, nil
}

// RecordDependency inserts a from -> to edge or strengthens an existing one:
// confidence becomes the larger of old and new, and new evidence is appended.
func (s *DiscoveryService) RecordDependency(ctx context.Context, from, to, evidence string, confidence float64) (*database.DiscoveredDependency, bool, error) {
	var dep database.DiscoveredDependency
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("from_service = ? AND to_service = ?", from, to).First(&dep).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			dep = database.DiscoveredDependency{
				ID:           database.NewID(),
				FromService:  from,
				ToService:    to,
				Evidence:     optionalString(evidence),
				Confidence:   confidence,
				DiscoveredAt: s.opts.utcNow(),
			}
			return tx.Create(&dep).Error
		}
		if err != nil {
			return err
		}

		if confidence > dep.Confidence {
			dep.Confidence = confidence
		}
		if evidence != "" {
			if dep.Evidence != nil && *dep.Evidence != "" {
				joined := *dep.Evidence + "; " + evidence
				dep.Evidence = &joined
			} else {
				dep.Evidence = &evidence
			}
		}
		return tx.Model(&dep).Updates(map[string]interface{}{
			"confidence": dep.Confidence,
			"evidence":   dep.Evidence,
		}).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to record dependency %s -> %s: %w", from, to, err)
	}
	return &dep, created, nil
}

// KnownIssueSuggestion proposes a known issue for the catalog
type KnownIssueSuggestion struct {
	Pattern         string
	Cause           string
	Solution        string
	Services        []string
	InvestigationID string
}

// SuggestKnownIssue inserts a known-issue suggestion or, for a pattern seen
// before, counts the occurrence, adds the investigation id once, and replaces
// cause, solution and services.
func (s *DiscoveryService) SuggestKnownIssue(ctx context.Context, sug KnownIssueSuggestion) (*database.SuggestedKnownIssue, bool, error) {
	var issue database.SuggestedKnownIssue
	created := false

	var services database.StringList
	if sug.Services != nil {
		services = database.StringList(sug.Services)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("pattern = ?", sug.Pattern).First(&issue).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			ids := database.StringList{}
			if sug.InvestigationID != "" {
				ids = append(ids, sug.InvestigationID)
			}
			issue = database.SuggestedKnownIssue{
				ID:               database.NewID(),
				Pattern:          sug.Pattern,
				Cause:            sug.Cause,
				Solution:         sug.Solution,
				Services:         services,
				Occurrences:      1,
				InvestigationIDs: ids,
				DiscoveredAt:     s.opts.utcNow(),
			}
			return tx.Create(&issue).Error
		}
		if err != nil {
			return err
		}

		issue.Occurrences++
		if issue.InvestigationIDs == nil {
			issue.InvestigationIDs = database.StringList{}
		}
		if sug.InvestigationID != "" && !issue.InvestigationIDs.Contains(sug.InvestigationID) {
			issue.InvestigationIDs = append(issue.InvestigationIDs, sug.InvestigationID)
		}
		issue.Cause = sug.Cause
		issue.Solution = sug.Solution
		issue.Services = services
		return tx.Model(&issue).Updates(map[string]interface{}{
			"occurrences":       issue.Occurrences,
			"investigation_ids": issue.InvestigationIDs,
			"cause":             issue.Cause,
			"solution":          issue.Solution,
			"services":          issue.Services,
		}).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to suggest known issue: %w", err)
	}
	return &issue, created, nil
}

// PendingGroup is one kind of unsynced discovery
type PendingGroup[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

// PendingDiscoveries lists everything not yet synced to the catalog
type PendingDiscoveries struct {
	TotalPending int                                         `json:"total_pending"`
	Services     PendingGroup[database.DiscoveredService]    `json:"services"`
	Dependencies PendingGroup[database.DiscoveredDependency] `json:"dependencies"`
	KnownIssues  PendingGroup[database.SuggestedKnownIssue]  `json:"known_issues"`
	Hint         string                                      `json:"hint"`
}

const (
	pendingHint   = "Run `incidentfox sync-catalog` to review and add these to .incidentfox.yaml"
	noPendingHint = "No pending discoveries"
)

// Pending returns unsynced services (newest first), dependencies (most
// confident first) and known issues (most frequent first)
func (s *DiscoveryService) Pending(ctx context.Context) (*PendingDiscoveries, error) {
	db := s.db.WithContext(ctx)
	p := &PendingDiscoveries{}

	p.Services.Items = []database.DiscoveredService{}
	if err := db.Where("synced_at IS NULL").Order("discovered_at DESC").Find(&p.Services.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending services: %w", err)
	}
	p.Dependencies.Items = []database.DiscoveredDependency{}
	if err := db.Where("synced_at IS NULL").Order("confidence DESC").Find(&p.Dependencies.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending dependencies: %w", err)
	}
	p.KnownIssues.Items = []database.SuggestedKnownIssue{}
	if err := db.Where("synced_at IS NULL").Order("occurrences DESC").Find(&p.KnownIssues.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending known issues: %w", err)
	}

	p.Services.Count = len(p.Services.Items)
	p.Dependencies.Count = len(p.Dependencies.Items)
	p.KnownIssues.Count = len(p.KnownIssues.Items)
	p.TotalPending = p.Services.Count + p.Dependencies.Count + p.KnownIssues.Count

	p.Hint = noPendingHint
	if p.TotalPending > 0 {
		p.Hint = pendingHint
	}
	return p, nil
}

// SyncRequest names the discoveries that were written to the catalog
type SyncRequest struct {
	ServiceIDs    []string
	DependencyIDs []string
	KnownIssueIDs []string
}

// SyncCounts reports how many rows were marked synced per kind
type SyncCounts struct {
	Services     int64 `json:"services"`
	Dependencies int64 `json:"dependencies"`
	KnownIssues  int64 `json:"known_issues"`
}

// Total is the sum over all kinds
func (c SyncCounts) Total() int64 {
	return c.Services + c.Dependencies + c.KnownIssues
}

// MarkSynced stamps synced_at on the given discoveries. Unknown ids are
// ignored and simply do not count.
func (s *DiscoveryService) MarkSynced(ctx context.Context, req SyncRequest) (*SyncCounts, error) {
	now := s.opts.utcNow()
	counts := &SyncCounts{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mark := func(model interface{}, ids []string, n *int64) error {
			if len(ids) == 0 {
				return nil
			}
			result := tx.Model(model).Where("id IN ?", ids).Update("synced_at", now)
			if result.Error != nil {
				return result.Error
			}
			*n = result.RowsAffected
			return nil
		}
		if err := mark(&database.DiscoveredService{}, req.ServiceIDs, &counts.Services); err != nil {
			return err
		}
		if err := mark(&database.DiscoveredDependency{}, req.DependencyIDs, &counts.Dependencies); err != nil {
			return err
		}
		return mark(&database.SuggestedKnownIssue{}, req.KnownIssueIDs, &counts.KnownIssues)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark discoveries synced: %w", err)
	}
	return counts, nil
}
