package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/seenimoa/moodpulse/pkg/models"
)

// fields is what one extractor could read from an object. Zero values mean
// "not found".
type fields struct {
	Mood         string // canonical mood name once cleaned
	MoodHint     string // unrecognized mood text, kept for inference
	TopicWord    string
	SubTopics    []string
	Reason       string
	Intensity    int
	Color        string
	DisplayName  string
	Translations map[string]any
}

// extractor reads one schema shape. Extractors never fail.
type extractor func(obj map[string]any) fields

// extractors in priority order.
var extractors = []extractor{primaryFields, legacyFields}

func primaryFields(obj map[string]any) fields {
	return fields{
		Mood:         str(obj, "mood"),
		TopicWord:    str(obj, "topicWord", "topic_word"),
		SubTopics:    strList(obj, "subTopics", "sub_topics"),
		Reason:       str(obj, "reason"),
		Intensity:    integer(obj, "intensity"),
		Color:        str(obj, "color"),
		DisplayName:  str(obj, "displayNameLocalized", "display_name_localized"),
		Translations: object(obj, "translations"),
	}
}

// legacyFields reads the older response shape.
func legacyFields(obj map[string]any) fields {
	return fields{
		Mood:         str(obj, "emotion", "sentiment"),
		TopicWord:    str(obj, "keyword", "topic"),
		SubTopics:    strList(obj, "hashtags", "keywords", "tags"),
		Reason:       str(obj, "explanation", "summary", "analysis"),
		Intensity:    integer(obj, "bpm", "heartRate"),
		Color:        str(obj, "colorCode", "hex"),
		DisplayName:  str(obj, "name", "localizedName", "displayName"),
		Translations: object(obj, "i18n", "localized"),
	}
}

// extract merges every extractor's result, earlier ones winning per field.
// Each result is cleaned first, so an unusable value never hides a usable
// one from a later extractor.
func extract(obj map[string]any) fields {
	var f fields
	for _, ex := range extractors {
		f.fill(ex(obj).clean())
	}
	return f
}

// clean drops values that would fail validation: unknown moods (moved to
// MoodHint), sub-topics that are only markers, out-of-range intensities and
// colors that are not 6-digit hex.
func (f fields) clean() fields {
	if m, ok := canonicalMood(f.Mood); ok {
		f.Mood = string(m)
	} else {
		f.MoodHint, f.Mood = f.Mood, ""
	}
	f.SubTopics = CleanSubTopics(f.SubTopics)
	if f.Intensity < models.MinIntensity || f.Intensity > models.MaxIntensity {
		f.Intensity = 0
	}
	f.Color = cleanColor(f.Color)
	return f
}

func (f *fields) fill(g fields) {
	if f.Mood == "" {
		f.Mood = g.Mood
	}
	if f.MoodHint == "" {
		f.MoodHint = g.MoodHint
	}
	if f.TopicWord == "" {
		f.TopicWord = g.TopicWord
	}
	if len(f.SubTopics) == 0 {
		f.SubTopics = g.SubTopics
	}
	if f.Reason == "" {
		f.Reason = g.Reason
	}
	if f.Intensity == 0 {
		f.Intensity = g.Intensity
	}
	if f.Color == "" {
		f.Color = g.Color
	}
	if f.DisplayName == "" {
		f.DisplayName = g.DisplayName
	}
	if len(f.Translations) == 0 {
		f.Translations = g.Translations
	}
}

// ── Value helpers ──

func str(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []any:
			// Some responses wrap a single value in a list.
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

func strList(obj map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if out := splitTags(v); len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// splitTags splits "#a #b #c" or "a, b, c" into entries.
func splitTags(s string) []string {
	var parts []string
	switch {
	case strings.ContainsAny(s, ",\n"):
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	case strings.ContainsAny(s, "#＃"):
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == '#' || r == '＃' })
	default:
		parts = []string{s}
	}
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func integer(obj map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			return int(math.Round(v))
		case string:
			s := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(v)), "bpm"))
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return int(math.Round(f))
			}
		}
	}
	return 0
}

func object(obj map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if m, ok := obj[k].(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}
