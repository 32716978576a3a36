package ragseed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timeSensitiveWords mirrors the keyword set the original pipeline checks
// before deciding a query needs the current year injected.
var timeSensitiveWords = []string{
	"最新", "当前", "今年", "现在", "最近", "新", "发展", "趋势", "动态", "进展",
	"latest", "current", "recent", "new", "trend", "update", "progress", "development",
}

var yearPattern = regexp.MustCompile(`20\d{2}年?`)

// isTimeSensitive reports whether query contains any keyword that implies
// the answer is time-bound and must carry the current year.
func isTimeSensitive(query string) bool {
	lower := strings.ToLower(query)
	for _, w := range timeSensitiveWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// injectYear prepends the current year to a keyword list when the source
// query is time-sensitive and no keyword already carries a year.
func injectYear(keywords []string, query string, year int) []string {
	if !isTimeSensitive(query) {
		return keywords
	}
	for _, k := range keywords {
		if yearPattern.MatchString(k) {
			return keywords
		}
	}
	return append([]string{fmt.Sprintf("%d年", year)}, keywords...)
}

// validateAndFixYears is the final defense pass: every generated search
// query is checked for a year that doesn't match the current one (replaced)
// and, if the query is time-sensitive but carries no year at all, one is
// appended.
func validateAndFixYears(queries []string, year int) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		fixed := q
		matches := yearPattern.FindAllString(fixed, -1)
		for _, m := range matches {
			digits := strings.TrimSuffix(m, "年")
			n, err := strconv.Atoi(digits)
			if err == nil && n != year {
				fixed = strings.ReplaceAll(fixed, m, fmt.Sprintf("%d年", year))
			}
		}
		if isTimeSensitive(fixed) && !yearPattern.MatchString(fixed) {
			fixed = fmt.Sprintf("%s %d年", fixed, year)
		}
		out = append(out, fixed)
	}
	return out
}
