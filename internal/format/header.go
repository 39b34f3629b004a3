package format

import (
	"strings"

	"github.com/sells-group/cycler-cli/internal/textio"
)

// DefaultHeaderLine is the header index used when no line qualifies: Toyo
// files carry a metadata line and a marker line before the header.
const DefaultHeaderLine = 2

var headerKeywords = []string{"Date", "Voltage", "Current", "Time"}

// LooksLikeHeader reports whether a line is a Toyo data header: it starts
// with Date and mentions both Time and Voltage.
func LooksLikeHeader(line string) bool {
	s := strings.TrimLeft(strings.TrimSpace(line), "\"\ufeff")
	return strings.HasPrefix(s, "Date") && strings.Contains(s, "Time") && strings.Contains(s, "Voltage")
}

// FindHeaderLine returns the index of the header row among lines. The
// second return is false when neither rule matched.
func FindHeaderLine(lines []string) (int, bool) {
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if LooksLikeHeader(line) {
			return i, true
		}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, ",")+1 <= 10 {
			continue
		}
		for _, kw := range headerKeywords {
			if strings.Contains(line, kw) {
				return i, true
			}
		}
	}
	return 0, false
}

// HeaderInfo is where a file's header sits and what it says.
type HeaderInfo struct {
	Line  int
	Text  string
	Found bool
}

// LocateHeader reads a file and locates its header line, using fallback when
// no line qualifies. Text is empty when the fallback lies past the end.
func LocateHeader(r *textio.Reader, path string, fallback int) (HeaderInfo, error) {
	d, err := r.ReadFile(path)
	if err != nil {
		return HeaderInfo{}, err
	}
	lines := d.Lines()
	info := HeaderInfo{Line: fallback}
	if idx, ok := FindHeaderLine(lines); ok {
		info.Line, info.Found = idx, true
	}
	if info.Line >= 0 && info.Line < len(lines) {
		info.Text = lines[info.Line]
	}
	return info, nil
}
