package phonetic_test

import (
	"testing"

	"github.com/voxtype/voxtype/internal/transcript/phonetic"
)

func TestMatcher_MisspelledTermMatches(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocab := []string{"Grafana", "Prometheus", "Meridian Labs"}

	// "graphana" encodes identically to "grafana" and should match.
	term, conf, matched := m.Match("graphana", vocab)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "graphana")
	}
	if term != "Grafana" {
		t.Errorf("Match(%q): term=%q, want %q", "graphana", term, "Grafana")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "graphana", conf)
	}
}

func TestMatcher_ExactMatchHighConfidence(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocab := []string{"Grafana", "Prometheus"}

	term, conf, matched := m.Match("prometheus", vocab)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "prometheus")
	}
	if term != "Prometheus" {
		t.Errorf("Match(%q): term=%q, want original casing %q", "prometheus", term, "Prometheus")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9 for exact match", "prometheus", conf)
	}
}

func TestMatcher_CaseInsensitive(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	term, _, matched := m.Match("GRAFANA", []string{"Grafana"})
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "GRAFANA")
	}
	if term != "Grafana" {
		t.Errorf("Match(%q): term=%q, want %q", "GRAFANA", term, "Grafana")
	}
}

func TestMatcher_MultiWordTerm(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocab := []string{"Meridian Labs", "Grafana"}

	term, conf, matched := m.Match("meridian labs", vocab)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "meridian labs")
	}
	if term != "Meridian Labs" {
		t.Errorf("Match(%q): term=%q, want %q", "meridian labs", term, "Meridian Labs")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9", "meridian labs", conf)
	}
}

func TestMatcher_PartialWindowNotACandidate(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "the" has no phonetic counterpart in the term, so the window must not
	// qualify even though "meridian" aligns perfectly.
	_, _, matched := m.Match("the meridian", []string{"Meridian Labs"})
	if matched {
		t.Fatal("Match(\"the meridian\") matched, want no match")
	}
}

func TestMatcher_UnrelatedWordNoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocab := []string{"Grafana", "Prometheus"}

	term, conf, matched := m.Match("coffee", vocab)
	if matched {
		t.Fatalf("Match(%q): matched=true, want false", "coffee")
	}
	if term != "coffee" {
		t.Errorf("Match(%q): term=%q, want input unchanged", "coffee", term)
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "coffee", conf)
	}
}

func TestMatcher_ThresholdsRejectNearMatches(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(1.01),
		phonetic.WithFuzzyThreshold(1.01),
	)

	if _, _, matched := m.Match("graphana", []string{"Grafana"}); matched {
		t.Fatal("Match with impossible thresholds should never match")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	if _, _, matched := m.Match("", []string{"Grafana"}); matched {
		t.Error("empty input must not match")
	}
	if _, _, matched := m.Match("   ", []string{"Grafana"}); matched {
		t.Error("blank input must not match")
	}
	if _, _, matched := m.Match("grafana", nil); matched {
		t.Error("empty vocabulary must not match")
	}
	if _, _, matched := m.Match("grafana", []string{"  "}); matched {
		t.Error("blank vocabulary entry must not match")
	}
}
