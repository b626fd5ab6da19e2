// Package model holds SortAI's core data-model entities (spec.md §3):
// pure structs with no knowledge of storage, embedding, or LLM
// backends, in the same spirit as the teacher's domain/entities
// package.
package model

import "time"

// FileType is a coarse type hint derived from a file's extension
// (§4.1).
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeArchive  FileType = "archive"
	FileTypeOther    FileType = "other"
)

// ExtractedSignals holds the optional media-inspector cues a file may
// carry once Phase 2 has run (§3 File record).
type ExtractedSignals struct {
	TextCue        string
	SceneTags      []string
	DetectedObject []string
	Language       string
	PageCount      int
	WordCount      int
	FrameCount     int
	Duration       time.Duration
}

// FileRecord is a scanned file's stable identity plus whatever signals
// have been extracted for it so far (§3 File record). It is owned by
// the scan result and mutated only during extraction.
type FileRecord struct {
	ID           string
	Path         string
	Size         int64
	ModTime      time.Time
	ContentHash  string // empty until computed
	Ext          string
	Type         FileType
	ParentFolder string // empty if not part of a ScannedFolder
	Signals      *ExtractedSignals
}

// ScannedFolder is a sub-folder treated as an atomic move unit (§3
// Scanned folder). A folder and its files are never split unless the
// user explicitly requests flatten.
type ScannedFolder struct {
	Path          string
	Files         []FileRecord
	AggregateSize int64
	DominantType  FileType
}

// RefinementState is a taxonomy node's lifecycle stage (§3 Taxonomy tree).
type RefinementState string

const (
	StateInitial    RefinementState = "initial"
	StateRefining   RefinementState = "refining"
	StateRefined    RefinementState = "refined"
	StateUserEdited RefinementState = "user-edited"
)

// AssignmentSource records which pipeline stage produced a FileAssignment.
type AssignmentSource string

const (
	SourcePhase1  AssignmentSource = "phase1"
	SourcePhase2  AssignmentSource = "phase2"
	SourceUser    AssignmentSource = "user"
	SourceLearned AssignmentSource = "learned"
)

// FileAssignment is the tuple (file id, category id, confidence,
// rationale, source) from §3.
type FileAssignment struct {
	FileID     string
	CategoryID string
	Confidence float64
	Rationale  string
	Source     AssignmentSource
	DecidedAt  time.Time
}

// EntityType names a knowledge-graph entity kind (§3 Knowledge graph).
type EntityType string

const (
	EntityFile     EntityType = "file"
	EntityCategory EntityType = "category"
	EntityKeyword  EntityType = "keyword"
	EntityPattern  EntityType = "pattern"
)

// RelationType names a knowledge-graph relationship kind (§3).
type RelationType string

const (
	RelMentions          RelationType = "mentions"
	RelCategorizedAs     RelationType = "categorized_as"
	RelSuggestsCategory  RelationType = "suggests_category"
	RelHumanConfirmed    RelationType = "human_confirmed"
	RelHumanRejected     RelationType = "human_rejected"
	RelSimilarTo         RelationType = "similar_to"
)

// Entity is a knowledge-graph node, addressed by a stable integer id
// (arena-style, per spec.md §9's guidance to avoid cyclic pointers).
type Entity struct {
	ID   int64
	Type EntityType
	Key  string // e.g. keyword text, category path segment, file id
}

// Relationship is a weighted, typed, timestamped edge between two
// entities (§3 Knowledge graph).
type Relationship struct {
	ID        int64
	FromID    int64
	ToID      int64
	Type      RelationType
	Weight    float64
	CreatedAt time.Time
	Metadata  map[string]string
}

// OperationKind is the physical operation a movement-log entry records
// (§3 Movement log entry).
type OperationKind string

const (
	OpMove    OperationKind = "move"
	OpCopy    OperationKind = "copy"
	OpSymlink OperationKind = "symlink"
)

// LLMMode mirrors the router's mode (§4.10) at the moment a decision
// was made, captured for audit in the movement log.
type LLMMode string

const (
	ModeFull     LLMMode = "full"
	ModeDegraded LLMMode = "degraded"
	ModeOffline  LLMMode = "offline"
)

// MovementLogEntry is an append-only journal row (§3). Undo marks it in
// place; store.Prune deletes non-undoable rows older than the retention
// window.
type MovementLogEntry struct {
	ID              string
	Timestamp       time.Time
	Source          string
	Destination     string
	Reason          string
	Confidence      float64
	Operation       OperationKind
	ProviderID      string
	ProviderVersion string
	LLMModeAtDecision LLMMode
	Undoable        bool
	UndoneAt        *time.Time
}

// FeedbackStatus is a feedback item's review state (§3 Feedback item).
type FeedbackStatus string

const (
	FeedbackPending       FeedbackStatus = "pending"
	FeedbackAutoAccepted  FeedbackStatus = "auto-accepted"
	FeedbackHumanAccepted FeedbackStatus = "human-accepted"
	FeedbackHumanCorrected FeedbackStatus = "human-corrected"
	FeedbackSkipped       FeedbackStatus = "skipped"
)

// FeedbackItem is a low-confidence assignment awaiting review (§3).
type FeedbackItem struct {
	FileID           string
	SuggestedPath    []string
	Confidence       float64
	Rationale        string
	ExtractedKeywords []string
	Status           FeedbackStatus
	HumanPath        []string
	ReviewedAt       *time.Time
	CreatedAt        time.Time
	CoolOffUntil     *time.Time
}

// WatchQueueEntry tracks an in-flight file awaiting its quiet period
// (§3 Watch queue entry).
type WatchQueueEntry struct {
	Path         string
	DetectedAt   time.Time
	LastModified time.Time
	Size         int64
	Attempts     int
	IsLarge      bool
}
