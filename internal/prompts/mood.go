// Package prompts renders the model prompt for mood analysis.
package prompts

import (
	"fmt"
	"strings"

	"github.com/seenimoa/moodpulse/pkg/models"
)

// MoodInstructions describes the analyst role and the required JSON shape.
// %s placeholders: mood list, sub-topic count, language list.
const MoodInstructions = `You are a news-mood analyst. Read the headlines below and describe the
dominant public mood they convey for the subject.

## Rules
1. "mood" must be exactly one of: %s
2. "topicWord" is the single primary subject of the news cycle, one or two words, in English
3. "subTopics" lists exactly %d short secondary topics, without '#' or any marker character
4. "reason" explains in two or three sentences why the mood was chosen, citing the headlines
5. "intensity" is an integer heartbeat between 40 (serene) and 180 (frantic)
6. "color" is a hex color code "#RRGGBB" that fits the mood
7. "translations" has one entry for each language code in [%s]; each entry carries
   "topicWord", "subTopics", "reason" and "displayNameLocalized" (the subject's name in that language)
8. Respond with a single JSON object and nothing else`

// Mood builds the prompt for one entity and its headlines.
func Mood(entity models.EntityConfig, headlines []string) string {
	moods := make([]string, len(models.Moods))
	for i, m := range models.Moods {
		moods[i] = string(m)
	}

	var b strings.Builder
	fmt.Fprintf(&b, MoodInstructions,
		strings.Join(moods, ", "),
		models.SubTopicCount,
		strings.Join(models.SupportedLanguages, ", "),
	)
	b.WriteString("\n\n## Subject\n")
	fmt.Fprintf(&b, "id: %s\nname: %s\n", entity.ID, displayName(entity))
	b.WriteString("\n## Headlines\n")
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}
	return b.String()
}

func displayName(e models.EntityConfig) string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.ID
}
