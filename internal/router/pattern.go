package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// Rule confidences.
const (
	codeSyntaxConfidence     = 0.90
	mathSyntaxConfidence     = 0.85
	documentConfidence       = 0.85
	mathKeywordConfidence    = 0.75
	codeKeywordConfidence    = 0.75
	writingKeywordConfidence = 0.70

	// minKeywordMatches is the keyword density needed for a keyword tier decision.
	minKeywordMatches = 2
)

var codePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?i)```[\\w]*"),
	regexp.MustCompile(`(?i)def\s+\w+\(`),
	regexp.MustCompile(`(?i)function\s+\w+\(`),
	regexp.MustCompile(`(?i)class\s+\w+`),
	regexp.MustCompile(`(?i)import\s+\w+`),
	regexp.MustCompile(`(?i)<\w+>.*</\w+>`),
}

var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\s*[\+\-\*\/\^]\s*\d+`),
	regexp.MustCompile(`\d+\s*%`),
	regexp.MustCompile(`=\s*\?`),
	regexp.MustCompile(`\b\d+(?:\.\d+)?\b.*\b\d+(?:\.\d+)?\b`),
}

var documentKeywords = []string{
	"document", "pdf", "uploaded", "file", "according to",
	"based on the", "in the document", "from the file",
}

var mathKeywords = keywordSet(
	"calculate", "compute", "solve", "equation", "sum", "multiply",
	"divide", "subtract", "add", "percentage", "average", "mean",
	"integral", "derivative", "algebra", "geometry", "math",
)

var codeKeywords = keywordSet(
	"code", "program", "function", "class", "implement", "algorithm",
	"debug", "python", "javascript", "java", "c++", "sql", "api",
	"variable", "loop", "array", "syntax", "compile", "execute",
)

var writingKeywords = keywordSet(
	"write", "compose", "draft", "essay", "letter", "email",
	"story", "article", "blog", "poem", "paragraph", "rewrite",
	"paraphrase", "summarize", "creative", "narrative",
)

func keywordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// PatternDetector is the deterministic rule tier of the router.
type PatternDetector struct{}

// NewPatternDetector returns the rule detector.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

// Detect returns a rule decision or nil when no rule fires.
func (PatternDetector) Detect(query string, documentAvailable bool) *domain.RouteDecision {
	for _, re := range codePatterns {
		if re.MatchString(query) {
			return rule(domain.CategoryCoding, codeSyntaxConfidence, "Detected code syntax or programming patterns")
		}
	}

	for _, re := range mathPatterns {
		if re.MatchString(query) {
			return rule(domain.CategoryMath, mathSyntaxConfidence, "Detected mathematical expressions or calculations")
		}
	}

	lower := strings.ToLower(query)
	if documentAvailable {
		for _, kw := range documentKeywords {
			if strings.Contains(lower, kw) {
				return rule(domain.CategoryDocument, documentConfidence, "Query references uploaded document context")
			}
		}
	}

	words := wordSet(lower)
	if n := countMatches(words, mathKeywords); n >= minKeywordMatches {
		return rule(domain.CategoryMath, mathKeywordConfidence,
			fmt.Sprintf("Multiple math-related keywords detected (%d keywords)", n))
	}
	if n := countMatches(words, codeKeywords); n >= minKeywordMatches {
		return rule(domain.CategoryCoding, codeKeywordConfidence,
			fmt.Sprintf("Multiple programming-related keywords detected (%d keywords)", n))
	}
	if n := countMatches(words, writingKeywords); n >= minKeywordMatches {
		return rule(domain.CategoryWriting, writingKeywordConfidence,
			fmt.Sprintf("Multiple writing-related keywords detected (%d keywords)", n))
	}

	return nil
}

func rule(category domain.Category, confidence float64, reasoning string) *domain.RouteDecision {
	d := domain.NewDecision(category, confidence, reasoning, domain.MethodRuleBased)
	return &d
}

// wordSet splits lowercased text on whitespace and trims surrounding punctuation.
// '+' and '#' are kept so tokens like "c++" survive.
func wordSet(lower string) map[string]struct{} {
	fields := strings.Fields(lower)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, isTrimmable)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func isTrimmable(r rune) bool {
	switch {
	case r == '+' || r == '#':
		return false
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	case r > 127:
		return false
	}
	return true
}

func countMatches(words, keywords map[string]struct{}) int {
	n := 0
	for w := range words {
		if _, ok := keywords[w]; ok {
			n++
		}
	}
	return n
}
