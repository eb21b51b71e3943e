package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const defaultLoopLimit = 30

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// RuleParser parses one line into a compiled rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (compiledRule, error)
}

// Source names where rules are read from. Inline lines are applied after the
// rules of the file.
type Source struct {
	Path  string
	Lines []string
}

// Engine normalizes recognized speech with deterministic substitutions. It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	rules     []compiledRule
	loopLimit int
}

// NewEngine compiles rules from src using the built-in parsers. A missing
// file is treated as an empty rule set.
func NewEngine(src Source, loopLimit int) (*Engine, error) {
	return NewEngineWithParsers(src, loopLimit, defaultRuleParsers())
}

func NewEngineWithParsers(src Source, loopLimit int, parsers []RuleParser) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = defaultLoopLimit
	}
	if len(parsers) == 0 {
		parsers = defaultRuleParsers()
	}

	var compiled []compiledRule
	if path := strings.TrimSpace(src.Path); path != "" {
		contents, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
		default:
			fileRules, err := parseRules(strings.Split(string(contents), "\n"), parsers)
			if err != nil {
				return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
			}
			compiled = append(compiled, fileRules...)
		}
	}

	inline, err := parseRules(src.Lines, parsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inline rules: %w", err)
	}
	compiled = append(compiled, inline...)

	return &Engine{rules: compiled, loopLimit: loopLimit}, nil
}

// Len reports the number of compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule until the text stops changing or the loop limit is
// reached, then collapses runs of whitespace.
func (e *Engine) Apply(text string) (string, error) {
	result := text
	for i := 0; i < e.loopLimit && len(e.rules) > 0; i++ {
		changed := false
		for _, rule := range e.rules {
			next, ruleChanged := rule.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return strings.Join(strings.Fields(result), " "), nil
}

func parseRules(lines []string, parsers []RuleParser) ([]compiledRule, error) {
	rules := make([]compiledRule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var parser RuleParser
		for _, candidate := range parsers {
			if candidate.CanParse(line) {
				parser = candidate
				break
			}
		}
		if parser == nil {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}

		rule, err := parser.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func defaultRuleParsers() []RuleParser {
	return []RuleParser{regexRuleParser{}, spacingRuleParser{}, literalRuleParser{}}
}
