package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kaia-labs/researcher/internal/model"
)

var helpCommand = regexp.MustCompile(`^\s*(/help|help)\b`)

var helpPhrases = []string{
	"what do you do",
	"what can you do",
	"how do i use",
	"capabilities",
	"supported metrics",
	"what metrics",
}

// Metric and change vocabularies for the strict pipeline gate. A question
// must contain one word from each list to enter the research pipeline.
var (
	metricWords = []string{"salience", "awareness", "consideration", "preference", "intent", "nps", "share of voice"}
	changeWords = []string{"increased", "decreased", "fell", "rose", "down", "up", "drop", "gain", "change"}
)

// brandGuess matches a capitalized token run that plausibly names a brand.
var brandGuess = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&\- ]{1,30})\b`)

// IsHelpQuestion reports whether the question asks about capabilities
// rather than posing a research problem.
func IsHelpQuestion(q string) bool {
	ql := strings.ToLower(strings.TrimSpace(q))
	if ql == "" {
		return false
	}
	if helpCommand.MatchString(ql) {
		return true
	}
	for _, p := range helpPhrases {
		if strings.Contains(ql, p) {
			return true
		}
	}
	return false
}

// LooksLikeMetricChange reports whether the question describes a brand
// metric moving in some direction. Questions failing this gate receive a
// coaching response instead of entering the pipeline.
func LooksLikeMetricChange(q string) bool {
	ql := strings.ToLower(q)
	return containsAny(ql, metricWords) && containsAny(ql, changeWords)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// GuessBrand extracts a lowercase brand hint from free text, returning
// "unknown" when nothing capitalized is found.
func GuessBrand(question string) string {
	if m := brandGuess.FindStringSubmatch(question); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return "unknown"
}

// HelpPayload is the fixed capability description returned for help
// questions.
func HelpPayload() *model.Coaching {
	return &model.Coaching{
		Kind: "help",
		Message: "I’m a hypothesis-driven research assistant. I’m best at explaining *why a brand metric changed* by finding validating web evidence with citations.\n\n" +
			"Right now I work best with questions about **Salience / mental availability**.\n\n" +
			"For best results include: **brand**, **metric**, **direction (up/down)**, and a **time period** (and optionally a region).",
		SupportedMetrics: []string{"salience"},
		Examples: []string{
			"Salience fell by 6 points in Q3 2025 for New Look — find external reasons with citations.",
			"Salience increased in Q4 2025 for Nike in China — what external events could explain it? Provide citations.",
		},
		Note: "If you ask competitor-landscape or underperformance-by-market questions without a metric/timeframe, I’ll ask for clarification.",
	}
}

// CoachingPayload suggests reformulations for questions that do not map to
// a metric-change research run. The brand hint is templated into the
// suggestions.
func CoachingPayload(brandHint string) *model.Coaching {
	b := brandHint
	if b == "" || b == "unknown" {
		b = "the brand"
	}
	return &model.Coaching{
		Message: "Your question is valid, but it doesn’t map cleanly to our current metric-change research pipeline. " +
			"To get the best results, pick a timeframe and define what ‘underperforming’ means (revenue vs market share vs awareness/salience).",
		SuggestedQuestions: []string{
			fmt.Sprintf("Who are %s's biggest competitors globally and in Asia/Europe/US? Provide citations.", b),
			fmt.Sprintf("In 2024–2025, which regions is %s underperforming in (North America, China, EMEA) based on revenue growth/decline? Provide citations.", b),
			fmt.Sprintf("Brand salience decreased for %s in China in Q3 2025 — find external reasons with citations.", b),
		},
		Need: []string{"timeframe", "definition_of_underperforming"},
	}
}
