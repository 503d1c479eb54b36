// Package normalize turns raw model text into a complete AnalysisRecord.
//
// Parsing is the only step that can fail. Once a JSON object is recovered,
// every field is repaired or defaulted: candidate extractors are tried in
// priority order (current schema, then the older keyword/hashtags shape) and
// anything still missing receives a fixed default.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/seenimoa/moodpulse/internal/analysis/sentiment"
	"github.com/seenimoa/moodpulse/pkg/models"
)

// ErrNotObject is wrapped by SchemaError when the text holds no JSON object.
var ErrNotObject = errors.New("no JSON object found")

// SchemaError reports model output that could not be parsed at all.
type SchemaError struct {
	EntityID string
	Raw      string // truncated
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("normalize %s: unparsable model output: %v", e.EntityID, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// StripCodeFence removes a Markdown code fence around the payload. Text
// without a fence is returned trimmed.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	// Unterminated fence: drop the opening line.
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			return strings.TrimSpace(s[i+1:])
		}
		return ""
	}
	return s
}

// Normalize parses raw and returns a record satisfying every schema
// invariant. EntityID is always entity.ID; UpdatedAt is kept when present
// so an already normalized record round-trips unchanged.
func Normalize(entity models.EntityConfig, raw string) (models.AnalysisRecord, error) {
	obj, err := parseObject(StripCodeFence(raw))
	if err != nil {
		return models.AnalysisRecord{}, &SchemaError{EntityID: entity.ID, Raw: truncate(raw, 512), Err: err}
	}

	f := extract(obj)
	name := displayName(entity)

	rec := models.AnalysisRecord{
		EntityID:  entity.ID,
		UpdatedAt: str(obj, "updatedAt"),
		TopicWord: f.TopicWord,
		SubTopics: f.SubTopics,
		Reason:    f.Reason,
	}
	if rec.TopicWord == "" {
		rec.TopicWord = name
	}
	if rec.Reason == "" {
		rec.Reason = fmt.Sprintf("No analysis was returned for %s in this cycle.", name)
	}

	rec.Mood = resolveMood(f, rec.TopicWord+" "+strings.Join(rec.SubTopics, " ")+" "+rec.Reason)
	rec.Intensity = f.Intensity
	if rec.Intensity == 0 {
		rec.Intensity = models.DefaultIntensity
	}
	rec.Color = f.Color
	if rec.Color == "" {
		rec.Color = rec.Mood.Color()
	}
	rec.Translations = resolveTranslations(f.Translations, rec, name)
	return rec, nil
}

// parseObject decodes s as a JSON object. When s has surrounding prose, the
// outermost {...} span is tried. A top-level array yields its first object.
func parseObject(s string) (map[string]any, error) {
	if s == "" {
		return nil, ErrNotObject
	}
	var v any
	err := json.Unmarshal([]byte(s), &v)
	if err != nil {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
		}
		if err2 := json.Unmarshal([]byte(s[start:end+1]), &v); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotObject, err2)
		}
	}

	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m, nil
			}
		}
	}
	return nil, ErrNotObject
}

// resolveMood returns the extracted mood, or one inferred from the
// unrecognized mood text and the record's other text, or the default.
func resolveMood(f fields, text string) models.Mood {
	if m, ok := canonicalMood(f.Mood); ok {
		return m
	}
	if m, _, ok := sentiment.InferMood(f.MoodHint + " " + text); ok {
		return m
	}
	return models.DefaultMood
}

// canonicalMood matches raw against the mood names, ignoring case.
func canonicalMood(raw string) (models.Mood, bool) {
	raw = strings.TrimSpace(raw)
	if m := models.Mood(raw); m.Valid() {
		return m, true
	}
	for _, m := range models.Moods {
		if strings.EqualFold(raw, string(m)) {
			return m, true
		}
	}
	return "", false
}

var hexColor = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

// cleanColor returns c as "#rrggbb", or "" when it is not a 6-digit hex color.
func cleanColor(c string) string {
	c = strings.TrimSpace(c)
	if !hexColor.MatchString(c) {
		return ""
	}
	if !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	return c
}

// resolveTranslations keeps usable per-language entries, fills their empty
// fields from the top-level record and synthesizes missing languages.
func resolveTranslations(raw map[string]any, rec models.AnalysisRecord, name string) map[string]models.Translation {
	out := make(map[string]models.Translation, len(models.SupportedLanguages))
	for _, lang := range models.SupportedLanguages {
		var f fields
		if obj, ok := lookupLang(raw, lang).(map[string]any); ok {
			f = extract(obj)
		}

		t := models.Translation{
			TopicWord:            f.TopicWord,
			SubTopics:            f.SubTopics,
			Reason:               f.Reason,
			DisplayNameLocalized: f.DisplayName,
		}
		if t.TopicWord == "" {
			t.TopicWord = rec.TopicWord
		}
		if len(t.SubTopics) == 0 {
			t.SubTopics = append([]string{}, rec.SubTopics...)
		}
		if t.Reason == "" {
			t.Reason = rec.Reason
		}
		if t.DisplayNameLocalized == "" {
			t.DisplayNameLocalized = name
		}
		out[lang] = t
	}
	return out
}

// lookupLang finds a language entry by exact or case-insensitive key, so
// "KO" and "ko-KR" still land on "ko".
func lookupLang(m map[string]any, lang string) any {
	if v, ok := m[lang]; ok {
		return v
	}
	for k, v := range m {
		k = strings.ToLower(k)
		if k == lang || strings.HasPrefix(k, lang+"-") || strings.HasPrefix(k, lang+"_") {
			return v
		}
	}
	return nil
}

// CleanSubTopics strips marker characters, drops empties and duplicates and
// keeps at most models.SubTopicCount entries. It never returns nil.
func CleanSubTopics(in []string) []string {
	out := make([]string, 0, models.SubTopicCount)
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = CleanSubTopic(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == models.SubTopicCount {
			break
		}
	}
	return out
}

// CleanSubTopic removes leading hash and list markers and surrounding space.
func CleanSubTopic(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "#＃-*•· \t"))
}

func displayName(e models.EntityConfig) string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
