package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/incidentfox/incidentfox/internal/database"

	"gorm.io/gorm"
)

// ErrInvestigationNotFound is returned when an investigation id is unknown
var ErrInvestigationNotFound = errors.New("investigation not found")

const (
	DefaultSeverity     = "unknown"
	DefaultSearchDays   = 30
	DefaultSearchLimit  = 20
	DefaultSimilarLimit = 5

	// similarCandidateLimit caps how many recent completed investigations are scored
	similarCandidateLimit = 100
	topServicesLimit      = 10
	recentLimit           = 5
)

// InvestigationService manages the investigation lifecycle and its findings
type InvestigationService struct {
	db   *gorm.DB
	opts options
}

// NewInvestigationService creates a new investigation service
func NewInvestigationService(db *gorm.DB, opts ...Option) *InvestigationService {
	return &InvestigationService{db: db, opts: newOptions(opts)}
}

// StartParams describes a new investigation
type StartParams struct {
	Service  string
	Summary  string
	Severity string
	Tags     string // comma-separated
}

// Start opens a new in-progress investigation
func (s *InvestigationService) Start(ctx context.Context, p StartParams) (*database.Investigation, error) {
	severity := p.Severity
	if severity == "" {
		severity = DefaultSeverity
	}

	inv := &database.Investigation{
		ID:        database.NewID(),
		StartedAt: s.opts.utcNow(),
		Service:   optionalString(p.Service),
		Summary:   optionalString(p.Summary),
		Severity:  severity,
		Tags:      optionalString(p.Tags),
		Status:    database.InvestigationStatusInProgress,
	}
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, fmt.Errorf("failed to create investigation: %w", err)
	}
	return inv, nil
}

// AddFinding appends a finding to an existing investigation
func (s *InvestigationService) AddFinding(ctx context.Context, investigationID, findingType, title, data string) (*database.Finding, error) {
	finding := &database.Finding{
		ID:              database.NewID(),
		InvestigationID: investigationID,
		Timestamp:       s.opts.utcNow(),
		Type:            findingType,
		Title:           title,
		Data:            optionalString(data),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.Investigation{}).Where("id = ?", investigationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("investigation %s: %w", investigationID, ErrInvestigationNotFound)
		}
		return tx.Create(finding).Error
	})
	if err != nil {
		return nil, err
	}
	return finding, nil
}

// Complete closes an investigation with its root cause and resolution. The
// summary is only replaced when a non-empty one is given. Completing twice
// overwrites the earlier root cause and resolution.
func (s *InvestigationService) Complete(ctx context.Context, investigationID, rootCause, resolution, summary string) (*database.Investigation, error) {
	now := s.opts.utcNow()
	updates := map[string]interface{}{
		"ended_at":   now,
		"root_cause": rootCause,
		"resolution": resolution,
		"status":     database.InvestigationStatusCompleted,
	}
	if summary != "" {
		updates["summary"] = summary
	}

	var inv database.Investigation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&database.Investigation{}).Where("id = ?", investigationID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("investigation %s: %w", investigationID, ErrInvestigationNotFound)
		}
		return tx.Where("id = ?", investigationID).First(&inv).Error
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// InvestigationDetail is an investigation with its findings in time order
type InvestigationDetail struct {
	database.Investigation
	Findings     []database.Finding `json:"findings"`
	FindingCount int                `json:"finding_count"`
}

// Get returns an investigation and all of its findings
func (s *InvestigationService) Get(ctx context.Context, id string) (*InvestigationDetail, error) {
	db := s.db.WithContext(ctx)

	var inv database.Investigation
	if err := db.Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("investigation %s: %w", id, ErrInvestigationNotFound)
		}
		return nil, err
	}

	findings := []database.Finding{}
	if err := db.Where("investigation_id = ?", id).Order("timestamp ASC").Find(&findings).Error; err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}

	return &InvestigationDetail{
		Investigation: inv,
		Findings:      findings,
		FindingCount:  len(findings),
	}, nil
}

// SearchParams filters past investigations
type SearchParams struct {
	Query   string
	Service string
	DaysAgo int
	Limit   int
}

// Search finds investigations started within the last DaysAgo days whose
// summary, root cause, resolution or tags contain Query. Matching ignores
// ASCII case on SQLite and all case on Postgres.
func (s *InvestigationService) Search(ctx context.Context, p SearchParams) ([]database.Investigation, error) {
	if p.DaysAgo <= 0 {
		p.DaysAgo = DefaultSearchDays
	}
	if p.Limit <= 0 {
		p.Limit = DefaultSearchLimit
	}

	cutoff := s.opts.utcNow().Add(-time.Duration(p.DaysAgo) * 24 * time.Hour)
	q := s.db.WithContext(ctx).Model(&database.Investigation{}).Where("started_at >= ?", cutoff)

	if p.Query != "" {
		like := "%" + escapeLike(p.Query) + "%"
		op := s.likeOperator()
		q = q.Where(
			fmt.Sprintf("(summary %[1]s ? ESCAPE '!' OR root_cause %[1]s ? ESCAPE '!' OR resolution %[1]s ? ESCAPE '!' OR tags %[1]s ? ESCAPE '!')", op),
			like, like, like, like,
		)
	}
	if p.Service != "" {
		q = q.Where("service = ?", p.Service)
	}

	investigations := []database.Investigation{}
	if err := q.Order("started_at DESC").Limit(p.Limit).Find(&investigations).Error; err != nil {
		return nil, fmt.Errorf("failed to search investigations: %w", err)
	}
	return investigations, nil
}

// likeOperator returns the case-insensitive match operator. SQLite's LIKE
// already folds ASCII case; Postgres needs ILIKE. Both sides of the
// comparison stay untouched so non-ASCII text matches as stored.
func (s *InvestigationService) likeOperator() string {
	if s.db.Dialector != nil && s.db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// escapeLike makes LIKE wildcards in s match literally (escape char '!')
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// SimilarParams describes the issue to match against past investigations
type SimilarParams struct {
	ErrorMessage string
	Service      string
	Limit        int
}

// ScoredInvestigation is a completed investigation with its similarity score
type ScoredInvestigation struct {
	database.Investigation
	Score int `json:"score,omitempty"`
}

// FindSimilar ranks recent completed investigations against an error message.
// Root cause matches score 10, summary matches 5, and a tag contained in the
// message 3. Without a message the newest completed investigations are
// returned unranked.
func (s *InvestigationService) FindSimilar(ctx context.Context, p SimilarParams) ([]ScoredInvestigation, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultSimilarLimit
	}

	q := s.db.WithContext(ctx).Where("status = ?", database.InvestigationStatusCompleted)
	if p.Service != "" {
		q = q.Where("service = ?", p.Service)
	}

	var candidates []database.Investigation
	if err := q.Order("started_at DESC").Limit(similarCandidateLimit).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	scored := []ScoredInvestigation{}
	if p.ErrorMessage == "" {
		for i := 0; i < len(candidates) && i < p.Limit; i++ {
			scored = append(scored, ScoredInvestigation{Investigation: candidates[i]})
		}
		return scored, nil
	}

	message := strings.ToLower(p.ErrorMessage)
	for _, inv := range candidates {
		if score := similarityScore(inv, message); score > 0 {
			scored = append(scored, ScoredInvestigation{Investigation: inv, Score: score})
		}
	}

	// Stable keeps newer investigations first among equal scores
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > p.Limit {
		scored = scored[:p.Limit]
	}
	return scored, nil
}

func similarityScore(inv database.Investigation, message string) int {
	score := 0
	if inv.RootCause != nil && strings.Contains(strings.ToLower(*inv.RootCause), message) {
		score += 10
	}
	if inv.Summary != nil && strings.Contains(strings.ToLower(*inv.Summary), message) {
		score += 5
	}
	if inv.Tags != nil {
		for _, tag := range strings.Split(*inv.Tags, ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" && strings.Contains(message, tag) {
				score += 3
				break
			}
		}
	}
	return score
}

// ServiceCount is an investigation count for one service
type ServiceCount struct {
	Service string `json:"service"`
	Count   int64  `json:"count"`
}

// InvestigationSummary is the short form used in listings
type InvestigationSummary struct {
	ID        string                       `json:"id"`
	StartedAt time.Time                    `json:"started_at"`
	Service   *string                      `json:"service"`
	Summary   *string                      `json:"summary"`
	Status    database.InvestigationStatus `json:"status"`
}

// Statistics aggregates the investigation history
type Statistics struct {
	TotalInvestigations  int64                  `json:"total_investigations"`
	ByStatus             map[string]int64       `json:"by_status"`
	TopServices          []ServiceCount         `json:"top_services"`
	KnownPatterns        int64                  `json:"known_patterns"`
	RecentInvestigations []InvestigationSummary `json:"recent_investigations"`
}

// Statistics returns aggregate counts over all investigations
func (s *InvestigationService) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	stats := &Statistics{
		ByStatus:             map[string]int64{},
		TopServices:          []ServiceCount{},
		RecentInvestigations: []InvestigationSummary{},
	}

	if err := db.Model(&database.Investigation{}).Count(&stats.TotalInvestigations).Error; err != nil {
		return nil, fmt.Errorf("failed to count investigations: %w", err)
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&database.Investigation{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
	}

	if err := db.Model(&database.Investigation{}).
		Select("service, COUNT(*) AS count").
		Where("service IS NOT NULL").
		Group("service").
		Order("count DESC").
		Limit(topServicesLimit).
		Scan(&stats.TopServices).Error; err != nil {
		return nil, fmt.Errorf("failed to count by service: %w", err)
	}

	if err := db.Model(&database.KnownPattern{}).Count(&stats.KnownPatterns).Error; err != nil {
		return nil, fmt.Errorf("failed to count known patterns: %w", err)
	}

	if err := db.Model(&database.Investigation{}).
		Select("id, started_at, service, summary, status").
		Order("started_at DESC").
		Limit(recentLimit).
		Scan(&stats.RecentInvestigations).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent investigations: %w", err)
	}

	return stats, nil
}
