package guardian

import (
	"regexp"
	"strings"
)

// HeuristicProvider detects analyzer-directed text using pattern matching.
// It is stateless and safe for concurrent use.
type HeuristicProvider struct {
	rules []patternRule
}

// patternRule fires when any of its patterns matches.
type patternRule struct {
	signal   Signal
	patterns []*regexp.Regexp
}

func (r patternRule) matches(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// NewHeuristicProvider creates a heuristic guardian with built-in detection rules.
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{rules: builtinRules}
}

func (p *HeuristicProvider) Name() string { return "heuristic" }

// Analyze returns the signals whose rules match text, in rule order.
func (p *HeuristicProvider) Analyze(text string) Result {
	var res Result
	var why []string
	for _, r := range p.rules {
		if r.matches(text) {
			res.Signals = append(res.Signals, r.signal)
			why = append(why, r.signal.Description)
		}
	}
	res.Explanation = strings.Join(why, "; ")
	return res
}

var builtinRules = []patternRule{
	{
		signal: Signal{ID: "instruction_override", Category: "prompt-injection", Severity: "high",
			Description: "message tries to override the analyzer's instructions"},
		patterns: mustCompile(
			`(?i)ignore\s+(all\s+)?(previous|prior|above|the)\s+(instructions?|rules?)`,
			`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(previous\s+)?(instructions?|rules?|guidelines?)`,
			`(?i)forget\s+(all\s+)?(your|previous)\s+(instructions?|rules?)`,
			`(?i)you\s+are\s+now\s+(free|unrestricted|unfiltered)`,
			`(?i)new\s+instructions?:\s+`,
			`(?i)system\s*:\s*(you\s+are|ignore|forget)`,
		),
	},
	{
		signal: Signal{ID: "prompt_exfiltration", Category: "prompt-injection", Severity: "medium",
			Description: "message asks the analyzer to reveal its prompt"},
		patterns: mustCompile(
			`(?i)(show|reveal|display|print|output)\s+(me\s+)?(your|the)\s+(system\s+)?prompt`,
			`(?i)repeat\s+(your\s+)?(system\s+)?(prompt|instructions?)`,
		),
	},
	{
		signal: Signal{ID: "verdict_forgery", Category: "output-forgery", Severity: "critical",
			Description: "message contains a verdict-shaped payload"},
		patterns: mustCompile(
			`(?i)"?violations"?\s*:\s*\[`,
			`"user_id"\s*:`,
		),
	},
	{
		signal: Signal{ID: "moderator_address", Category: "prompt-injection", Severity: "high",
			Description: "message tells the moderator to punish or spare a member"},
		patterns: mustCompile(
			`(?i)\b(ai|bot|moderator|assistant|model)\b[\s,:]+(please\s+)?(mute|ban|report|flag|punish)\s+`,
			`(?i)\b(ai|bot|moderator|assistant|model)\b[\s,:]+(do\s+not|don'?t|never)\s+(mute|ban|report|flag)\s+`,
			`(?i)(add|include|put)\s+\S+\s+(to|in)\s+(the\s+)?violations`,
		),
	},
	{
		signal: Signal{ID: "indirect_injection", Category: "prompt-injection", Severity: "critical",
			Description: "message carries chat-template or hidden-instruction markers"},
		patterns: mustCompile(
			`(?i)\[INST\]`,
			`(?i)<\|im_start\|>`,
			`(?i)BEGIN\s+HIDDEN\s+INSTRUCTIONS?`,
			`(?i)IMPORTANT:\s*(ignore|disregard|override)`,
		),
	},
	{
		signal: Signal{ID: "obfuscated_base64", Category: "obfuscation", Severity: "medium",
			Description: "message carries a long base64 payload"},
		patterns: mustCompile(`[A-Za-z0-9+/]{40,}={0,2}`),
	},
}

func mustCompile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}
