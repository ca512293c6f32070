package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/OEngineer/fetscraper/pkg/errors"
)

var shorthandPattern = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration parses a duration string into seconds.
//
// Accepted formats:
//   - plain seconds: "90" -> 90
//   - MM:SS: "5:30" -> 330
//   - H:MM:SS: "1:23:45" -> 5025
//   - shorthand: "5m30s" -> 330, "1h30m" -> 5400
//
// Anything else yields a format error.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Format("empty duration string")
	}

	if isDigits(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.Format("invalid duration %q", s)
		}
		return n, nil
	}

	if m := shorthandPattern.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
		hours := atoiDefault(m[1])
		minutes := atoiDefault(m[2])
		seconds := atoiDefault(m[3])
		return hours*3600 + minutes*60 + seconds, nil
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2: // MM:SS
		minutes, err1 := strconv.Atoi(parts[0])
		seconds, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil {
			return minutes*60 + seconds, nil
		}
	case 3: // H:MM:SS
		hours, err1 := strconv.Atoi(parts[0])
		minutes, err2 := strconv.Atoi(parts[1])
		seconds, err3 := strconv.Atoi(parts[2])
		if err1 == nil && err2 == nil && err3 == nil {
			return hours*3600 + minutes*60 + seconds, nil
		}
	}

	return 0, errors.Format("invalid duration %q", s)
}

// FormatDuration renders seconds as a human-readable duration: "45s",
// "5:30", "1:23:45"
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes, secs := seconds/60, seconds%60
	if minutes < 60 {
		return fmt.Sprintf("%d:%02d", minutes, secs)
	}

	hours, mins := minutes/60, minutes%60
	return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
