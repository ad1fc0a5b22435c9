package types

import "time"

// Library is the topic source document
type Library struct {
	TrendingTopics []Topic `json:"trending_topics"`
}

// Topic is one day's content unit
type Topic struct {
	Title  string  `json:"title"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Scenes []Scene `json:"scenes"`
}

// Scene is one narration beat
type Scene struct {
	Text   string `json:"text"`
	Search string `json:"search"`
}

// Segment is the assembled, captioned, timed unit for one scene
type Segment struct {
	Index         int           `json:"index"`
	Text          string        `json:"text"`
	Search        string        `json:"search"`
	IsFinal       bool          `json:"is_final"`
	AudioFile     string        `json:"audio_file"`
	AudioDuration time.Duration `json:"audio_duration"`
	Duration      time.Duration `json:"duration"`
	VisualFile    string        `json:"visual_file"` // empty when the placeholder is used
	Placeholder   bool          `json:"placeholder"`
	File          string        `json:"file"`
}

// UploadMetadata holds the YouTube snippet/status fields for one artifact
type UploadMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
	MadeForKids bool     `json:"made_for_kids"`
}

// TopicRun tracks the state of one topic within a pipeline run
type TopicRun struct {
	RunID         string          `json:"run_id"`
	Topic         string          `json:"topic"`
	StartedAt     string          `json:"started_at"`
	CompletedAt   string          `json:"completed_at"`
	Segments      []*Segment      `json:"segments"`
	Artifact      string          `json:"artifact"`
	DurationSec   float64         `json:"duration_sec"`
	Metadata      *UploadMetadata `json:"metadata,omitempty"`
	YouTubeID     string          `json:"youtube_id,omitempty"`
	YouTubeURL    string          `json:"youtube_url,omitempty"`
	UploadSkipped bool            `json:"upload_skipped"`
	Error         string          `json:"error,omitempty"`
}
