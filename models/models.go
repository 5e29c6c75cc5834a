package models

import (
	"errors"
	"time"
)

// ErrInvalidRequest is returned when a job or research request fails validation.
var ErrInvalidRequest = errors.New("invalid request")

// Status is the lifecycle state of a processing job.
type Status string

const (
	StatusCreated      Status = "created"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusResearching  Status = "researching"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var statusOrder = map[Status]int{
	StatusCreated:      0,
	StatusDownloading:  1,
	StatusTranscribing: 2,
	StatusAnalyzing:    3,
	StatusResearching:  4,
	StatusCompleted:    5,
	StatusFailed:       5,
}

// Rank orders statuses along the forward-only state machine. Unknown statuses rank -1.
func (s Status) Rank() int {
	r, ok := statusOrder[s]
	if !ok {
		return -1
	}
	return r
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// JobRequest is what a caller submits to start a media job.
type JobRequest struct {
	URL                string `json:"url"`
	SpeakerName        string `json:"speaker_name,omitempty"`
	Context            string `json:"context,omitempty"`
	LanguageCode       string `json:"language_code,omitempty"`
	ModelID            string `json:"model_id,omitempty"`
	CleanupAudio       bool   `json:"cleanup_audio"`
	ResearchStatements bool   `json:"research_statements"`
}

// Job is the mutable record of one pipeline run.
type Job struct {
	ID                  string     `json:"job_id"`
	Target              string     `json:"target"`
	Request             JobRequest `json:"request"`
	MediaID             string     `json:"video_id,omitempty"`
	Status              Status     `json:"status"`
	Step                string     `json:"step,omitempty"`
	Progress            int        `json:"progress"`
	StatementsTotal     int        `json:"statements_total"`
	StatementsCompleted int        `json:"statements_completed"`
	Error               string     `json:"error,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// EventType distinguishes frames on the progress stream.
type EventType string

const (
	EventConnection EventType = "connection"
	EventStatus     EventType = "status"
	EventProgress   EventType = "progress"
	EventHeartbeat  EventType = "heartbeat"
)

// ProgressEvent is one immutable status update for a job.
type ProgressEvent struct {
	Type      EventType      `json:"type"`
	JobID     string         `json:"job_id"`
	MediaID   string         `json:"video_id,omitempty"`
	Status    Status         `json:"status,omitempty"`
	Step      string         `json:"step,omitempty"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// Terminal reports whether the event carries a terminal status.
func (e ProgressEvent) Terminal() bool {
	return e.Type != EventHeartbeat && e.Status.Terminal()
}

// MediaArtifact is the output of the acquisition stage.
type MediaArtifact struct {
	ID              string `json:"id"`
	SourceURL       string `json:"source_url"`
	Title           string `json:"title,omitempty"`
	Uploader        string `json:"uploader,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	AudioPath       string `json:"-"`
}

// Transcript is the speech-to-text output for one artifact.
type Transcript struct {
	Text             string `json:"text"`
	LanguageCode     string `json:"language_code,omitempty"`
	DetectedLanguage string `json:"detected_language,omitempty"`
}

// Statement is one checkable claim extracted from a transcript.
type Statement struct {
	Text        string            `json:"statement"`
	Language    string            `json:"language,omitempty"`
	Context     string            `json:"context,omitempty"`
	Category    StatementCategory `json:"category,omitempty"`
	StartSecond *int              `json:"time_from_seconds,omitempty"`
	EndSecond   *int              `json:"time_to_seconds,omitempty"`
}

// TranscriptAnalysis is the claim-extraction result for a transcript.
type TranscriptAnalysis struct {
	Statements         []Statement         `json:"statements"`
	AnalysisSummary    string              `json:"analysis_summary"`
	DetectedLanguage   string              `json:"detected_language,omitempty"`
	DominantCategories []StatementCategory `json:"dominant_categories,omitempty"`
}
