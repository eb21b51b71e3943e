package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// literalRuleParser handles "from => to", matched case-insensitively.
type literalRuleParser struct{}

func (literalRuleParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (literalRuleParser) Parse(line string) (compiledRule, error) {
	from, to, err := splitArrow(line, "=>")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return replaceRule{re: re, replacement: literalReplacement(to), global: true}, nil
}

// spacingRuleParser handles "from ~> to". Recognizers split Korean phrases
// inconsistently, so the source matches with or without whitespace between
// any of its characters.
type spacingRuleParser struct{}

func (spacingRuleParser) CanParse(line string) bool {
	return strings.Contains(line, "~>")
}

func (spacingRuleParser) Parse(line string) (compiledRule, error) {
	from, to, err := splitArrow(line, "~>")
	if err != nil {
		return nil, err
	}

	var pattern strings.Builder
	pattern.WriteString("(?i)")
	first := true
	for _, r := range from {
		if unicode.IsSpace(r) {
			continue
		}
		if !first {
			pattern.WriteString(`\s*`)
		}
		pattern.WriteString(regexp.QuoteMeta(string(r)))
		first = false
	}

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("invalid spacing source: %w", err)
	}
	return replaceRule{re: re, replacement: literalReplacement(to), global: true}, nil
}

// regexRuleParser handles sed style "s/pattern/replacement/flags". Patterns
// are case-insensitive; only the first match is replaced unless g is given.
type regexRuleParser struct{}

func (regexRuleParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}

func (regexRuleParser) Parse(line string) (compiledRule, error) {
	return parseRegexRule(line)
}

func parseRegexRule(line string) (compiledRule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isAlphaNumericOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	global := false
	inline := "i"
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i', ' ':
		case 'g':
			global = true
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return replaceRule{re: re, replacement: replacement, global: global}, nil
}

type replaceRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r replaceRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

func splitArrow(line, arrow string) (string, string, error) {
	from, to, ok := strings.Cut(line, arrow)
	if !ok {
		return "", "", fmt.Errorf("missing %q", arrow)
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return "", "", errors.New("rule source cannot be empty")
	}
	return from, strings.TrimSpace(to), nil
}

// literalReplacement escapes $ so replacement text is inserted verbatim.
func literalReplacement(text string) string {
	return strings.ReplaceAll(text, "$", "$$")
}

func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		switch {
		case escaped:
			escaped = false
		case char == '\\':
			escaped = true
		case char == delim:
			return builder.String(), index + 1, nil
		}
		builder.WriteByte(char)
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}
