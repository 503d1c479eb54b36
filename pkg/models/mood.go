package models

import "time"

// Mood is the dominant emotional tone of an entity's news cycle.
type Mood string

const (
	MoodPanic      Mood = "Panic"
	MoodCalm       Mood = "Calm"
	MoodGreed      Mood = "Greed"
	MoodInnovation Mood = "Innovation"
	MoodConflict   Mood = "Conflict"
)

// DefaultMood is used when the model output carries no usable mood.
const DefaultMood = MoodCalm

// Moods lists every valid mood in a stable order.
var Moods = []Mood{MoodPanic, MoodCalm, MoodGreed, MoodInnovation, MoodConflict}

// Valid reports whether m is one of the enumerated moods.
func (m Mood) Valid() bool {
	for _, v := range Moods {
		if m == v {
			return true
		}
	}
	return false
}

// Color returns the palette color the globe uses for the mood.
func (m Mood) Color() string {
	switch m {
	case MoodPanic:
		return "#E53935"
	case MoodGreed:
		return "#FFB300"
	case MoodInnovation:
		return "#8E24AA"
	case MoodConflict:
		return "#F4511E"
	default:
		return "#1E88E5"
	}
}

// Intensity bounds, in beats per minute.
const (
	MinIntensity     = 40
	MaxIntensity     = 180
	DefaultIntensity = 80
)

// SubTopicCount is the number of sub-topics a record carries at most.
const SubTopicCount = 3

// SupportedLanguages are the translation keys every record must carry.
var SupportedLanguages = []string{"en", "ko", "ja", "zh"}

// EntityConfig is one tracked country or topic.
type EntityConfig struct {
	ID          string `json:"id"          yaml:"id"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	FeedURL     string `json:"feedUrl"     yaml:"feedUrl"`
}

// Translation is the localized view of a record.
type Translation struct {
	TopicWord            string   `json:"topicWord"`
	SubTopics            []string `json:"subTopics"`
	Reason               string   `json:"reason"`
	DisplayNameLocalized string   `json:"displayNameLocalized"`
}

// AnalysisRecord is the persisted mood snapshot for one entity.
type AnalysisRecord struct {
	EntityID     string                 `json:"entityId"`
	UpdatedAt    string                 `json:"updatedAt"` // RFC 3339, slot-aligned
	Mood         Mood                   `json:"mood"`
	TopicWord    string                 `json:"topicWord"`
	SubTopics    []string               `json:"subTopics"`
	Reason       string                 `json:"reason"`
	Intensity    int                    `json:"intensity"` // bpm
	Color        string                 `json:"color"`
	Translations map[string]Translation `json:"translations"`
}

// Store maps entity ids to their latest record.
type Store map[string]AnalysisRecord

// Keys returns the store's entity ids in no particular order.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// EntityStatus is the outcome of one entity within a run.
type EntityStatus string

const (
	StatusUpdated EntityStatus = "updated"
	StatusFailed  EntityStatus = "failed"
)

// EntityResult records what happened to one entity during a run.
type EntityResult struct {
	EntityID  string       `json:"entityId"`
	Status    EntityStatus `json:"status"`
	Stage     string       `json:"stage,omitempty"` // "fetch", "analyze", "normalize", "write"
	Error     string       `json:"error,omitempty"`
	Headlines int          `json:"headlines"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	ID         string         `json:"id"`
	Slot       string         `json:"slot"`
	UpdatedAt  string         `json:"updatedAt"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Results    []EntityResult `json:"results"`
}

// Failed returns the number of entities that did not update.
func (r *RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Updated returns the number of entities that produced a fresh record.
func (r *RunReport) Updated() int {
	return len(r.Results) - r.Failed()
}
