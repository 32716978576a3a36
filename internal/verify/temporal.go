package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timeSensitiveWords mirrors ragseed's temporal injection keyword set
// (spec.md §4.4), reused here per §4.5 step 2's "temporal injection
// identical to §4.4" requirement.
var timeSensitiveWords = []string{
	"最新", "当前", "今年", "现在", "最近", "新", "发展", "趋势", "动态", "进展",
	"latest", "current", "recent", "new", "trend", "update", "progress", "development",
}

var yearPattern = regexp.MustCompile(`20\d{2}年?`)

func isTimeSensitive(query string) bool {
	lower := strings.ToLower(query)
	for _, w := range timeSensitiveWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// validateAndFixYears rewrites any stale year found in a dimension query to
// the current year, and appends the current year to a time-sensitive query
// that carries none. Unlike ragseed's final defense pass, the appended year
// has no 年 suffix.
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
			fixed = fmt.Sprintf("%s %d", fixed, year)
		}
		out = append(out, fixed)
	}
	return out
}
