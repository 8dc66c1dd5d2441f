package pdf

import (
	"regexp"
	"strings"
)

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#{1,6}\s+\S`),
	regexp.MustCompile(`^제\s*\d+\s*[장절]`),
	regexp.MustCompile(`^\d+\.\d+\.\d+\.?\s+\S`),
	regexp.MustCompile(`^\d+\.\d+\.?\s+\S`),
	regexp.MustCompile(`^\d+\.\s+[A-Z가-힣]`),
	regexp.MustCompile(`^[IVX]+\.\s+\S`),
	regexp.MustCompile(`^[A-Z]\.\s+\S`),
}

// maxHeadingRunes bounds how long a line may be and still count as a heading.
const maxHeadingRunes = 120

// DetectHeading reports whether line looks like a section heading and
// returns its cleaned title.
func DetectHeading(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > maxHeadingRunes {
		return "", false
	}
	for _, p := range headingPatterns {
		if p.MatchString(line) {
			return strings.TrimSpace(strings.TrimLeft(line, "#")), true
		}
	}
	return "", false
}

// lastHeading returns the last heading found in text, if any.
func lastHeading(text string) (string, bool) {
	var found string
	ok := false
	for line := range strings.SplitSeq(text, "\n") {
		if h, is := DetectHeading(line); is {
			found, ok = h, true
		}
	}
	return found, ok
}
