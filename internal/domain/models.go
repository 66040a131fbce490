package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies which entity table a change record belongs to.
// Routing is decided by the trigger source (notification channel or
// poller scan), never guessed from the payload.
type EventKind string

const (
	KindPullRequest EventKind = "pull_request"
	KindPipelineRun EventKind = "pipeline_run"
	KindInsight     EventKind = "insight"
)

// EventState is the single derived workflow status pushed to clients.
type EventState string

const (
	StateOpened      EventState = "opened"
	StateUpdated     EventState = "updated"
	StateDraft       EventState = "draft"
	StateBuilding    EventState = "building"
	StateBuildPassed EventState = "buildPassed"
	StateBuildFailed EventState = "buildFailed"
	StateApproved    EventState = "approved"
	StateRejected    EventState = "rejected"
	StateMergeFailed EventState = "mergeFailed"
	StateMerged      EventState = "merged"
	StateClosed      EventState = "closed"
)

// RiskLevel is the normalized risk classification of an insight.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// FileChange is a single changed file in a pull request.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// HistoryEntry is one append-only workflow transition on a record.
type HistoryEntry struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// FileChangeList and HistoryList are stored as JSONB columns.

type FileChangeList []FileChange

func (l FileChangeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal file changes: %w", err)
	}

	return string(b), nil
}

func (l *FileChangeList) Scan(src interface{}) error {
	return scanJSONList(src, l, "file changes")
}

type HistoryList []HistoryEntry

func (l HistoryList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	return string(b), nil
}

func (l *HistoryList) Scan(src interface{}) error {
	return scanJSONList(src, l, "history")
}

func scanJSONList(src, dst interface{}, what string) error {
	if src == nil {
		return nil
	}

	var b []byte

	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported %s column type %T", what, src)
	}

	if len(b) == 0 {
		return nil
	}

	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}

	return nil
}

// PullRequest mirrors one row of the pull_requests table, written by the
// external ingestion pipeline and read by the event processor.
// (repo_id, pr_number) is unique.
type PullRequest struct {
	ID           uuid.UUID      `db:"id"`
	RepoID       uuid.UUID      `db:"repo_id"`
	PRNumber     int            `db:"pr_number"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Author       string         `db:"author"`
	AuthorAvatar string         `db:"author_avatar"`
	CommitSHA    string         `db:"commit_sha"`
	BranchName   string         `db:"branch_name"`
	BaseBranch   string         `db:"base_branch"`
	PRURL        string         `db:"pr_url"`
	Additions    int            `db:"additions"`
	Deletions    int            `db:"deletions"`
	ChangedFiles int            `db:"changed_files"`
	IsDraft      bool           `db:"is_draft"`
	Merged       bool           `db:"merged"`
	State        string         `db:"state"` // open / closed
	History      HistoryList    `db:"history"`
	FilesChanged FileChangeList `db:"files_changed"`
	Processed    bool           `db:"processed"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// PipelineRun mirrors one row of the pipeline_runs table.
// One row per (repo_id, pr_number); the four status fields are independent.
type PipelineRun struct {
	ID             uuid.UUID `db:"id"`
	RepoID         uuid.UUID `db:"repo_id"`
	PRNumber       int       `db:"pr_number"`
	CommitSHA      string    `db:"commit_sha"`
	StatusPR       string    `db:"status_pr"`
	StatusBuild    string    `db:"status_build"`
	StatusApproval string    `db:"status_approval"`
	StatusMerge    string    `db:"status_merge"`
	Processed      bool      `db:"processed"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Insight is one AI (or heuristic) analysis of a pull request.
// Insights are append-only; the latest is determined by created_at.
type Insight struct {
	ID             uuid.UUID `db:"id"`
	RepoID         uuid.UUID `db:"repo_id"`
	PRNumber       int       `db:"pr_number"`
	CommitSHA      string    `db:"commit_sha"`
	RiskLevel      RiskLevel `db:"risk_level"`
	Summary        string    `db:"summary"`
	Recommendation string    `db:"recommendation"`
	Processed      bool      `db:"processed"`
	CreatedAt      time.Time `db:"created_at"`
}

// StateDelta is the minimal state change pushed to subscribers.
// All fields are JSON-native strings because the wire format is JSON text.
type StateDelta struct {
	RepoID    string     `json:"repoId"`
	PRNumber  int        `json:"prNumber"`
	State     EventState `json:"state"`
	UpdatedAt string     `json:"updatedAt"`
}

// NewStateDelta normalizes identifiers and timestamps to strings.
func NewStateDelta(repoID uuid.UUID, prNumber int, state EventState, updatedAt time.Time) StateDelta {
	return StateDelta{
		RepoID:    repoID.String(),
		PRNumber:  prNumber,
		State:     state,
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339),
	}
}
