package logging

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelWarn)

	logger.Debug("invisible")
	logger.Info("also invisible")
	logger.Warn("visible warning")
	logger.Error("visible error")

	out := buf.String()
	if strings.Contains(out, "invisible") {
		t.Error("messages below min level should be filtered")
	}
	if !strings.Contains(out, "visible warning") {
		t.Error("expected warning to be logged")
	}
	if !strings.Contains(out, "visible error") {
		t.Error("expected error to be logged")
	}
}

func TestComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	child := logger.WithComponent("knowledge")
	child.Info("search complete")

	if !strings.Contains(buf.String(), "[knowledge]") {
		t.Errorf("expected component prefix, got: %s", buf.String())
	}
}

func TestSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	scoped := logger.WithSessionID("sess-42")
	scoped.Info("turn_start")

	if !strings.Contains(buf.String(), "session=sess-42") {
		t.Errorf("expected session field, got: %s", buf.String())
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("turn_complete", map[string]interface{}{
		"segments": 3,
	})

	if !strings.Contains(buf.String(), "segments=3") {
		t.Errorf("expected key=value field, got: %s", buf.String())
	}
}

func TestPipelineEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.TurnStart("u1", "c1")
	logger.MilestoneFired("u1", "c1", "first_confession")
	logger.SegmentDropped("Mallory", 2)
	logger.SynthesisError("Alice", 0, fmt.Errorf("tts unavailable"))
	logger.StateSanitized("u1", "c1", "affection out of range")
	logger.UnknownItem("item-404")

	out := buf.String()
	for _, want := range []string{
		"turn_start",
		"milestone_fired",
		"segment_dropped",
		"synthesis_error",
		"state_sanitized",
		"unknown_knowledge_item",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
	if !strings.Contains(out, "milestone=first_confession") {
		t.Error("expected milestone name in fields")
	}
}
