package prompts

import (
	"strings"
	"testing"

	"github.com/seenimoa/moodpulse/pkg/models"
)

func TestMoodPromptContents(t *testing.T) {
	entity := models.EntityConfig{ID: "kr", DisplayName: "South Korea"}
	p := Mood(entity, []string{"X wins", "Y falls"})

	for _, want := range []string{
		"Panic, Calm, Greed, Innovation, Conflict",
		"exactly 3 short secondary topics",
		"[en, ko, ja, zh]",
		"name: South Korea",
		"1. X wins\n2. Y falls\n",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "%!") {
		t.Errorf("prompt has a formatting error:\n%s", p)
	}
}

func TestMoodPromptFallsBackToID(t *testing.T) {
	p := Mood(models.EntityConfig{ID: "nvidia"}, nil)
	if !strings.Contains(p, "name: nvidia") {
		t.Errorf("expected id as display name, got:\n%s", p)
	}
}
