package sentiment

import (
	"math"
	"strings"

	"github.com/seenimoa/moodpulse/pkg/models"
)

// ------------------------------------------------------------------
// Keyword-based mood scorer (offline, no LLM needed).
// The model normally names the mood itself; this package provides a
// deterministic fallback when its answer is missing or unrecognized.
// ------------------------------------------------------------------

// moodWords holds a weighted keyword dictionary per mood (lowercase).
var moodWords = map[models.Mood]map[string]float64{
	models.MoodPanic: {
		"panic": 0.8, "crash": 0.8, "plunge": 0.7, "collapse": 0.7,
		"crisis": 0.6, "fear": 0.6, "earthquake": 0.7, "disaster": 0.7,
		"outbreak": 0.6, "pandemic": 0.6, "recession": 0.5, "selloff": 0.6,
		"evacuat": 0.6, "emergency": 0.5, "default": 0.5, "bankrupt": 0.6,
	},
	models.MoodCalm: {
		"calm": 0.6, "stable": 0.5, "steady": 0.5, "holiday": 0.4,
		"festival": 0.4, "weather": 0.3, "tourism": 0.3, "culture": 0.3,
		"peace": 0.5, "agreement": 0.4, "recovery": 0.3, "unchanged": 0.4,
	},
	models.MoodGreed: {
		"rally": 0.6, "surge": 0.6, "record high": 0.7, "all-time high": 0.7,
		"profit": 0.5, "boom": 0.6, "bitcoin": 0.5, "crypto": 0.5,
		"stock": 0.3, "earnings": 0.4, "ipo": 0.5, "bubble": 0.6,
		"soar": 0.6, "investor": 0.3, "dividend": 0.4, "bull": 0.5,
	},
	models.MoodInnovation: {
		"ai": 0.5, "launch": 0.5, "breakthrough": 0.7, "startup": 0.5,
		"robot": 0.5, "chip": 0.5, "semiconductor": 0.5, "research": 0.4,
		"innovation": 0.7, "technology": 0.5, "space": 0.4, "quantum": 0.6,
		"unveil": 0.5, "patent": 0.4, "electric vehicle": 0.5, "model": 0.2,
	},
	models.MoodConflict: {
		"war": 0.8, "conflict": 0.7, "attack": 0.7, "protest": 0.6,
		"missile": 0.7, "strike": 0.5, "military": 0.6, "sanction": 0.6,
		"tariff": 0.5, "clash": 0.6, "election": 0.3, "impeach": 0.6,
		"dispute": 0.5, "tension": 0.5, "troops": 0.6, "border": 0.3,
	},
}

// Score returns the summed keyword weight per mood for text. Moods with no
// matching keyword are absent from the map.
func Score(text string) map[models.Mood]float64 {
	lower := strings.ToLower(text)
	scores := make(map[models.Mood]float64)
	for mood, words := range moodWords {
		for word, weight := range words {
			if containsWord(lower, word) {
				scores[mood] += weight
			}
		}
	}
	return scores
}

// InferMood picks the highest-scoring mood for text. ok is false when no
// keyword matched. Ties resolve in models.Moods order so the result is
// deterministic.
func InferMood(text string) (mood models.Mood, confidence float64, ok bool) {
	scores := Score(text)
	if len(scores) == 0 {
		return models.DefaultMood, 0, false
	}

	total := 0.0
	best := 0.0
	for _, m := range models.Moods {
		s := scores[m]
		total += s
		if s > best {
			best, mood = s, m
		}
	}

	// Share of the winning mood, capped like a keyword-count confidence.
	confidence = math.Min(best/total, 0.85)
	return mood, confidence, true
}

// containsWord matches word at a word start so that short keywords such as
// "ai" or "war" do not fire inside longer words ("said", "award").
func containsWord(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		pos := i + j
		if pos == 0 || !isLetter(text[pos-1]) {
			end := pos + len(word)
			// Stems like "evacuat" and "sanction" may continue; short words
			// must end at a boundary.
			if len(word) > 4 || end == len(text) || !isLetter(text[end]) {
				return true
			}
		}
		i = pos + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
