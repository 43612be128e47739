package memory

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfigTOML = `
trigger_policy = "additive"

[status]
affection = 50
trust = 30

[triggers.affection]
increase = ["고마워", "thank you"]
decrease = ["싫어", "go away"]
amount = 5

[triggers.trust]
increase = ["secret"]
amount = 3

[milestones.close_friend]
condition = "affection >= 80 && conversation_count >= 10"
description = "Became close friends"
reward = "unlock_casual_speech"

[milestones.confidant]
condition = "trust == 100"
description = "Fully trusted"
reward = "unlock_backstory"
`

func mustConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(validConfigTOML))
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	return cfg
}

func TestParseConfig(t *testing.T) {
	cfg := mustConfig(t)

	if cfg.StatusValues["affection"] != 50 {
		t.Errorf("expected affection default 50, got %d", cfg.StatusValues["affection"])
	}
	if cfg.TriggerPolicy != PolicyAdditive {
		t.Errorf("expected additive policy, got %q", cfg.TriggerPolicy)
	}

	trig := cfg.StatusTriggers["affection"]
	if trig == nil || trig.Amount != 5 {
		t.Fatalf("affection trigger not loaded: %+v", trig)
	}
	if len(trig.IncreaseKeywords) != 2 || trig.IncreaseKeywords[0] != "고마워" {
		t.Errorf("unexpected increase keywords: %v", trig.IncreaseKeywords)
	}

	ms := cfg.Milestones["close_friend"]
	if ms == nil || ms.Condition() == nil {
		t.Fatal("milestone condition should be compiled at load")
	}
	if !ms.Condition().Eval(map[string]int{"affection": 80, "conversation_count": 10}) {
		t.Error("compiled condition should evaluate")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.toml")
	if err := os.WriteFile(path, []byte(validConfigTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Milestones) != 2 {
		t.Errorf("expected 2 milestones, got %d", len(cfg.Milestones))
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestConfigRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{
			"no status values",
			`[triggers.x]
increase = ["hi"]
amount = 1`,
		},
		{
			"status default out of range",
			`[status]
affection = 150`,
		},
		{
			"trigger for unknown status",
			`[status]
affection = 50
[triggers.charisma]
increase = ["hi"]
amount = 1`,
		},
		{
			"trigger without keywords",
			`[status]
affection = 50
[triggers.affection]
amount = 5`,
		},
		{
			"trigger with zero amount",
			`[status]
affection = 50
[triggers.affection]
increase = ["hi"]
amount = 0`,
		},
		{
			"trigger with blank keyword",
			`[status]
affection = 50
[triggers.affection]
increase = ["  "]
amount = 5`,
		},
		{
			"milestone without condition",
			`[status]
affection = 50
[milestones.broken]
description = "no condition"`,
		},
		{
			"milestone with unparseable condition",
			`[status]
affection = 50
[milestones.broken]
condition = "affection is high"`,
		},
		{
			"milestone referencing unknown variable",
			`[status]
affection = 50
[milestones.broken]
condition = "charisma >= 10"`,
		},
		{
			"unknown trigger policy",
			`trigger_policy = "random"
[status]
affection = 50`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.toml)); err == nil {
				t.Error("expected config rejection")
			}
		})
	}
}

func TestConfigAllowsDerivedCounters(t *testing.T) {
	cfgTOML := `
[status]
affection = 50
[milestones.regular]
condition = "conversation_count >= 5 && fact_count >= 1 && milestone_count >= 0"
`
	if _, err := ParseConfig([]byte(cfgTOML)); err != nil {
		t.Errorf("derived counters should be valid variables: %v", err)
	}
}

func TestDeterministicNameOrder(t *testing.T) {
	cfg := mustConfig(t)

	names := cfg.MilestoneNames()
	if len(names) != 2 || names[0] != "close_friend" || names[1] != "confidant" {
		t.Errorf("milestone names should come back sorted, got %v", names)
	}
	triggers := cfg.TriggerNames()
	if len(triggers) != 2 || triggers[0] != "affection" || triggers[1] != "trust" {
		t.Errorf("trigger names should come back sorted, got %v", triggers)
	}
}

func TestParseConfigBadTOML(t *testing.T) {
	if _, err := ParseConfig([]byte("this is not toml [")); err == nil {
		t.Error("expected TOML syntax error")
	}
}
