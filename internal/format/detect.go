package format

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/model"
)

// inspectLimit is how many channel directories contribute per-directory evidence.
const inspectLimit = 3

// Detection is the outcome of scoring a root.
type Detection struct {
	Format model.Format
	Scores map[model.Format]int
	Hinted bool
}

// Detector picks a format family by scoring directory evidence.
type Detector struct {
	reg *Registry
}

// NewDetector returns a detector over the registry's handlers.
func NewDetector(reg *Registry) *Detector {
	return &Detector{reg: reg}
}

// Detect scores root for every registered family. The highest score wins
// only when strictly greater than every other; otherwise the result is
// UNKNOWN. A hint other than UNKNOWN bypasses scoring.
func (d *Detector) Detect(root string, hint model.Format) (*Detection, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	if hint != "" && hint != model.FormatUnknown {
		return &Detection{Format: hint, Hinted: true}, nil
	}

	scores := make(map[model.Format]int)
	for _, h := range d.reg.All() {
		family := h.Variant().Format()
		s, err := h.Detect(root)
		if err != nil {
			return nil, err
		}
		if prev, seen := scores[family]; !seen || s > prev {
			scores[family] = s
		}
	}

	det := &Detection{Format: model.FormatUnknown, Scores: scores}
	best, bestScore, tie := model.FormatUnknown, 0, false
	for f, s := range scores {
		switch {
		case s > bestScore:
			best, bestScore, tie = f, s, false
		case s == bestScore && s > 0:
			tie = true
		}
	}
	if bestScore > 0 && !tie {
		det.Format = best
	}

	zap.L().Debug("format scores",
		zap.String("root", root),
		zap.Int("toyo", scores[model.FormatToyo]),
		zap.Int("pne", scores[model.FormatPNE]),
		zap.String("format", string(det.Format)),
	)
	return det, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// scoreToyo: +2 for any all-digit directory; per inspected directory +1 for
// a capacity log and +1 for six-digit data files.
func scoreToyo(root string) (int, error) {
	dirs, _, err := listDir(root)
	if err != nil {
		return 0, err
	}
	numeric := numericDirs(dirs)
	if len(numeric) == 0 {
		return 0, nil
	}
	score := 2
	for i, name := range numeric {
		if i >= inspectLimit {
			break
		}
		dir := filepath.Join(root, name)
		_, files, err := listDir(dir)
		if err != nil {
			continue
		}
		hasCap, hasData := false, false
		for _, f := range files {
			if strings.EqualFold(f, CapacityLogName) {
				hasCap = true
			}
			if toyoDataName.MatchString(f) {
				hasData = true
			}
		}
		if hasCap {
			score++
		}
		if hasData {
			score++
		}
	}
	return score, nil
}

// scorePNE: +2 for any directory containing "Ch"; per inspected directory +1
// for a Restore folder, +1 for SaveData files in it, +1 for the start index
// file; +1 for a top-level Pattern directory.
func scorePNE(root string) (int, error) {
	dirs, _, err := listDir(root)
	if err != nil {
		return 0, err
	}
	score := 0
	if isDir(filepath.Join(root, PatternDir)) {
		score++
	}
	channels := pneDirs(dirs)
	if len(channels) == 0 {
		return score, nil
	}
	score += 2
	for i, name := range channels {
		if i >= inspectLimit {
			break
		}
		restore := filepath.Join(root, name, RestoreDir)
		if !isDir(restore) {
			continue
		}
		score++
		_, files, err := listDir(restore)
		if err != nil {
			continue
		}
		for _, f := range files {
			if pneSaveData.MatchString(f) {
				score++
				break
			}
		}
		if exists(filepath.Join(restore, IndexStartName)) {
			score++
		}
	}
	return score, nil
}
