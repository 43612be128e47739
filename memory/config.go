package memory

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/voxchat/dialoguekit/errors"
)

// TriggerPolicy decides how a message matching both an increase and a
// decrease keyword of the same status nets out.
type TriggerPolicy string

const (
	// PolicyAdditive applies both directions: delta = +amount - amount = 0.
	// This is the documented default.
	PolicyAdditive TriggerPolicy = "additive"

	// PolicyIncreasePriority lets an increase match win outright.
	PolicyIncreasePriority TriggerPolicy = "increase_priority"
)

// Trigger is one keyword rule nudging a status value up or down.
type Trigger struct {
	IncreaseKeywords []string `toml:"increase"`
	DecreaseKeywords []string `toml:"decrease"`
	Amount           int      `toml:"amount"`
}

// Milestone is a one-time achievement with a compiled firing condition.
type Milestone struct {
	ConditionExpr string `toml:"condition"`
	Description   string `toml:"description"`
	Reward        string `toml:"reward"`

	condition *Condition
}

// Condition returns the compiled condition.
func (m *Milestone) Condition() *Condition {
	return m.condition
}

// Config is a character's memory configuration: status defaults, trigger
// rules, and milestone definitions. Loaded and validated once at startup,
// immutable afterwards.
type Config struct {
	StatusValues   map[string]int        `toml:"status"`
	StatusTriggers map[string]*Trigger   `toml:"triggers"`
	Milestones     map[string]*Milestone `toml:"milestones"`
	TriggerPolicy  TriggerPolicy         `toml:"trigger_policy"`

	// Extractor produces candidate persistent facts from a user message.
	// Nil means the built-in keyword extractor. Not part of the TOML shape.
	Extractor FactExtractor `toml:"-"`
}

// Derived counters milestone conditions may reference besides status names.
var derivedCounters = map[string]struct{}{
	"conversation_count": {},
	"milestone_count":    {},
	"fact_count":         {},
}

// LoadConfig reads and validates a TOML memory configuration file.
// Malformed configs are rejected here, never skipped at request time.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "reading memory config")
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a TOML memory configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "parsing memory config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the whole configuration and compiles milestone conditions.
func (c *Config) Validate() error {
	if len(c.StatusValues) == 0 {
		return errors.InvalidConfig("config defines no status values")
	}
	for name, v := range c.StatusValues {
		if v < 0 || v > 100 {
			return errors.InvalidConfig(fmt.Sprintf("status %q default %d outside [0,100]", name, v))
		}
	}

	switch c.TriggerPolicy {
	case "", PolicyAdditive:
		c.TriggerPolicy = PolicyAdditive
	case PolicyIncreasePriority:
	default:
		return errors.InvalidConfig(fmt.Sprintf("unknown trigger_policy %q", c.TriggerPolicy))
	}

	for status, trig := range c.StatusTriggers {
		if trig == nil {
			return errors.InvalidConfig(fmt.Sprintf("trigger for %q is empty", status))
		}
		if _, ok := c.StatusValues[status]; !ok {
			return errors.InvalidConfig(fmt.Sprintf("trigger references unknown status %q", status))
		}
		if trig.Amount <= 0 {
			return errors.InvalidConfig(fmt.Sprintf("trigger for %q needs a positive amount", status))
		}
		if len(trig.IncreaseKeywords) == 0 && len(trig.DecreaseKeywords) == 0 {
			return errors.InvalidConfig(fmt.Sprintf("trigger for %q has no keywords", status))
		}
		for _, kw := range append(trig.IncreaseKeywords, trig.DecreaseKeywords...) {
			if strings.TrimSpace(kw) == "" {
				return errors.InvalidConfig(fmt.Sprintf("trigger for %q has a blank keyword", status))
			}
		}
	}

	for name, ms := range c.Milestones {
		if ms == nil || strings.TrimSpace(ms.ConditionExpr) == "" {
			return errors.InvalidConfig(fmt.Sprintf("milestone %q has no condition", name))
		}
		cond, err := ParseCondition(ms.ConditionExpr)
		if err != nil {
			return errors.Wrapf(err, "milestone %q", name)
		}
		for _, variable := range cond.Variables() {
			if _, ok := c.StatusValues[variable]; ok {
				continue
			}
			if _, ok := derivedCounters[variable]; ok {
				continue
			}
			return errors.InvalidConfig(
				fmt.Sprintf("milestone %q references unknown variable %q", name, variable))
		}
		ms.condition = cond
	}

	return nil
}

// MilestoneNames returns milestone names in deterministic (sorted) order,
// the order Update evaluates them in.
func (c *Config) MilestoneNames() []string {
	names := make([]string, 0, len(c.Milestones))
	for name := range c.Milestones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TriggerNames returns trigger status keys in deterministic (sorted) order.
func (c *Config) TriggerNames() []string {
	names := make([]string, 0, len(c.StatusTriggers))
	for name := range c.StatusTriggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
