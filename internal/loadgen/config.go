package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL   string        // Base URL of the service
	NumClips  int           // Number of clips to register
	NumEvents int           // Number of engagement events to submit
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	LogFile   string        // Log file for run output
	Verbose   bool          // Enable verbose logging
}

// clipPayload mirrors the wire schema for POST /clips.
type clipPayload struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	Title      string   `json:"title"`
	DurationMS int64    `json:"duration_ms"`
	Genre      string   `json:"genre"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
}

// eventPayload mirrors the wire schema for POST /engagements.
type eventPayload struct {
	EventID string `json:"event_id"`
	ClipID  string `json:"clip_id"`
	ActorID string `json:"actor_id"`
	Kind    string `json:"kind"`
	TS      string `json:"ts"`
}

// ackResponse mirrors the intake acknowledgement.
type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// trendingItem is one entry of a trending page.
type trendingItem struct {
	ClipID string  `json:"clip_id"`
	Score  float64 `json:"score"`
}

// trendingPage mirrors the GET /trending response.
type trendingPage struct {
	Items    []trendingItem `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// Stats holds run statistics.
type Stats struct {
	ClipsRegistered  int
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	TrendingEntries  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
