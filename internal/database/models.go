package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a list of strings persisted as a JSON array in a text column
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Contains reports whether v is in the list
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// InvestigationStatus represents the lifecycle state of an investigation
type InvestigationStatus string

const (
	InvestigationStatusInProgress InvestigationStatus = "in_progress"
	InvestigationStatusCompleted  InvestigationStatus = "completed"
)

// Investigation is one incident-investigation session
type Investigation struct {
	ID         string              `gorm:"primaryKey;size:16" json:"id"`
	StartedAt  time.Time           `gorm:"not null;index:idx_investigations_started" json:"started_at"`
	EndedAt    *time.Time          `json:"ended_at"`
	Service    *string             `gorm:"index:idx_investigations_service" json:"service"`
	Summary    *string             `gorm:"type:text" json:"summary"`
	RootCause  *string             `gorm:"type:text" json:"root_cause"`
	Resolution *string             `gorm:"type:text" json:"resolution"`
	Severity   string              `gorm:"size:32;default:'unknown'" json:"severity"`
	Tags       *string             `json:"tags"` // comma-separated
	Status     InvestigationStatus `gorm:"size:32;not null;default:'in_progress'" json:"status"`

	Findings []Finding `gorm:"foreignKey:InvestigationID" json:"findings,omitempty"`
}

// Finding is an evidence item owned by exactly one investigation. Findings
// are never updated after they are written.
type Finding struct {
	ID              string    `gorm:"primaryKey;size:16" json:"id"`
	InvestigationID string    `gorm:"size:16;not null;index:idx_findings_investigation" json:"investigation_id"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
	Type            string    `gorm:"size:64;not null" json:"type"` // metric_anomaly, log_error, hypothesis, ...
	Title           string    `gorm:"type:text" json:"title"`
	Data            *string   `gorm:"type:text" json:"data"` // opaque, usually JSON
}

// KnownPattern maps a recurring symptom to its cause and fix
type KnownPattern struct {
	ID              string    `gorm:"primaryKey;size:16" json:"id"`
	Pattern         string    `gorm:"uniqueIndex;not null" json:"pattern"`
	Cause           string    `gorm:"type:text" json:"cause"`
	Solution        string    `gorm:"type:text" json:"solution"`
	Services        *string   `json:"services"` // comma-separated
	OccurrenceCount int       `gorm:"not null;default:1" json:"occurrence_count"`
	LastSeen        time.Time `json:"last_seen"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

// DiscoveredService is a service observed during an investigation that may
// not be in the catalog yet
type DiscoveredService struct {
	ID           string     `gorm:"primaryKey;size:16" json:"id"`
	Name         string     `gorm:"uniqueIndex;not null" json:"name"`
	Namespace    *string    `json:"namespace"`
	Deployments  StringList `gorm:"type:text" json:"deployments"`
	Description  *string    `gorm:"type:text" json:"description"`
	Team         *string    `json:"team"`
	DiscoveredAt time.Time  `gorm:"not null" json:"discovered_at"`
	SourceTool   *string    `json:"source_tool"`
	SyncedAt     *time.Time `json:"synced_at"`
}

// DiscoveredDependency is a directed edge from_service -> to_service
type DiscoveredDependency struct {
	ID           string     `gorm:"primaryKey;size:16" json:"id"`
	FromService  string     `gorm:"not null;uniqueIndex:idx_dependency_edge" json:"from_service"`
	ToService    string     `gorm:"not null;uniqueIndex:idx_dependency_edge" json:"to_service"`
	Evidence     *string    `gorm:"type:text" json:"evidence"`
	Confidence   float64    `gorm:"not null;default:0.5" json:"confidence"`
	DiscoveredAt time.Time  `gorm:"not null" json:"discovered_at"`
	SyncedAt     *time.Time `json:"synced_at"`
}

// SuggestedKnownIssue is a known-issue candidate waiting for human approval
type SuggestedKnownIssue struct {
	ID               string     `gorm:"primaryKey;size:16" json:"id"`
	Pattern          string     `gorm:"uniqueIndex;not null" json:"pattern"`
	Cause            string     `gorm:"type:text" json:"cause"`
	Solution         string     `gorm:"type:text" json:"solution"`
	Services         StringList `gorm:"type:text" json:"services"`
	Occurrences      int        `gorm:"not null;default:1" json:"occurrences"`
	InvestigationIDs StringList `gorm:"type:text" json:"investigation_ids"`
	DiscoveredAt     time.Time  `gorm:"not null" json:"discovered_at"`
	SyncedAt         *time.Time `json:"synced_at"`
}

// TableName overrides for explicit table naming
func (Investigation) TableName() string {
	return "investigations"
}

func (Finding) TableName() string {
	return "findings"
}

func (KnownPattern) TableName() string {
	return "known_patterns"
}

func (DiscoveredService) TableName() string {
	return "discovered_services"
}

func (DiscoveredDependency) TableName() string {
	return "discovered_dependencies"
}

func (SuggestedKnownIssue) TableName() string {
	return "suggested_known_issues"
}
