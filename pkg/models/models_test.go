package models

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"
)

// ── Mood Tests ──

func TestMoodValid(t *testing.T) {
	for _, m := range Moods {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	for _, m := range []Mood{"", "calm", "Joy"} {
		if m.Valid() {
			t.Errorf("%q should be invalid", m)
		}
	}
}

func TestMoodColors(t *testing.T) {
	seen := map[string]Mood{}
	for _, m := range Moods {
		c := m.Color()
		if len(c) != 7 || !strings.HasPrefix(c, "#") {
			t.Errorf("%s color %q is not #RRGGBB", m, c)
		}
		if prev, dup := seen[c]; dup {
			t.Errorf("%s and %s share color %s", m, prev, c)
		}
		seen[c] = m
	}
	if Mood("unknown").Color() != DefaultMood.Color() {
		t.Error("unknown moods should use the default mood's color")
	}
}

func TestIntensityBounds(t *testing.T) {
	if !(MinIntensity <= DefaultIntensity && DefaultIntensity <= MaxIntensity) {
		t.Errorf("default %d outside [%d, %d]", DefaultIntensity, MinIntensity, MaxIntensity)
	}
}

// ── Store Tests ──

func TestStoreKeys(t *testing.T) {
	st := Store{"us": {}, "kr": {}, "jp": {}}
	keys := st.Keys()
	sort.Strings(keys)
	if strings.Join(keys, ",") != "jp,kr,us" {
		t.Errorf("Keys = %v", keys)
	}
	if len(Store{}.Keys()) != 0 {
		t.Error("empty store should have no keys")
	}
}

func TestRecordJSONFieldNames(t *testing.T) {
	rec := AnalysisRecord{
		EntityID:     "kr",
		UpdatedAt:    "2026-10-17T12:00:00+09:00",
		Mood:         MoodCalm,
		SubTopics:    []string{},
		Translations: map[string]Translation{"en": {DisplayNameLocalized: "South Korea"}},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"entityId"`, `"updatedAt"`, `"topicWord"`, `"subTopics":[]`, `"displayNameLocalized"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("JSON missing %s: %s", key, data)
		}
	}
}

// ── Run Report Tests ──

func TestRunReportCounts(t *testing.T) {
	r := &RunReport{Results: []EntityResult{
		{EntityID: "kr", Status: StatusUpdated},
		{EntityID: "us", Status: StatusFailed, Stage: "fetch"},
		{EntityID: "jp", Status: StatusUpdated},
	}}
	if r.Failed() != 1 || r.Updated() != 2 {
		t.Errorf("Failed=%d Updated=%d, want 1 and 2", r.Failed(), r.Updated())
	}
	if (&RunReport{}).Failed() != 0 {
		t.Error("empty report should have no failures")
	}
}
