package format

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/model"
)

// Well-known file names.
const (
	CapacityLogName = "CAPACITY.LOG"
	RestoreDir      = "Restore"
	PatternDir      = "Pattern"
	IndexStartName  = "savingFileIndex_start.csv"
	IndexLastName   = "savingFileIndex_last.csv"
)

// Auxiliary PNE fragment keys.
const (
	AuxIndexStart = "index_start"
	AuxIndexLast  = "index_last"
	AuxSaveEnd    = "save_end"
)

var (
	digitsOnly   = regexp.MustCompile(`^\d+$`)
	toyoDataName = regexp.MustCompile(`^\d{6}$`)
	pneSaveData  = regexp.MustCompile(`(?i)^ch(\d+)_SaveData(\d+)\.csv$`)
	pneSaveEnd   = regexp.MustCompile(`(?i)^ch\d+_SaveEndData\.csv$`)
)

// Channel is one test-unit directory.
type Channel struct {
	Name string
	Path string
}

// FileSet lists a channel's files in processing order.
type FileSet struct {
	Data     []string
	Capacity string            // Toyo only; empty when absent
	Aux      map[string]string // PNE only; keyed by Aux* constants
}

// Total returns the number of files in the set.
func (s *FileSet) Total() int {
	n := len(s.Data) + len(s.Aux)
	if s.Capacity != "" {
		n++
	}
	return n
}

// CheckRoot fails with model.ErrPathNotFound unless root is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(model.ErrPathNotFound, "format: root %s", root)
		}
		return eris.Wrapf(err, "format: stat %s", root)
	}
	if !info.IsDir() {
		return eris.Wrapf(model.ErrPathNotFound, "format: root %s is not a directory", root)
	}
	return nil
}

func listDir(dir string) (dirs, files []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	return dirs, files, nil
}

// Channels lists a root's channel directories in processing order: Toyo
// channels are all-digit names sorted numerically, PNE channels contain
// "Ch" and sort lexicographically.
func Channels(root string, f model.Format) ([]Channel, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	dirs, _, err := listDir(root)
	if err != nil {
		return nil, eris.Wrapf(err, "format: list %s", root)
	}

	var names []string
	switch f {
	case model.FormatToyo:
		names = numericDirs(dirs)
	case model.FormatPNE:
		names = pneDirs(dirs)
	default:
		return nil, eris.Errorf("format: cannot list channels for %s", f)
	}

	out := make([]Channel, len(names))
	for i, n := range names {
		out[i] = Channel{Name: n, Path: filepath.Join(root, n)}
	}
	return out, nil
}

func numericDirs(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		if digitsOnly.MatchString(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseUint(out[i], 10, 64)
		b, _ := strconv.ParseUint(out[j], 10, 64)
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

func pneDirs(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		if strings.Contains(d, "Ch") {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Files lists a channel's files in processing order.
func Files(ch Channel, f model.Format) (*FileSet, error) {
	switch f {
	case model.FormatToyo:
		return toyoFiles(ch.Path)
	case model.FormatPNE:
		return pneFiles(ch.Path)
	default:
		return nil, eris.Errorf("format: cannot list files for %s", f)
	}
}

func toyoFiles(dir string) (*FileSet, error) {
	_, files, err := listDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "format: list %s", dir)
	}
	set := &FileSet{}
	for _, name := range files {
		switch {
		case toyoDataName.MatchString(name):
			set.Data = append(set.Data, filepath.Join(dir, name))
		case strings.EqualFold(name, CapacityLogName):
			set.Capacity = filepath.Join(dir, name)
		}
	}
	sort.Strings(set.Data) // fixed width, so lexicographic is numeric
	return set, nil
}

func pneFiles(dir string) (*FileSet, error) {
	restore := filepath.Join(dir, RestoreDir)
	_, files, err := listDir(restore)
	if err != nil {
		return nil, eris.Wrapf(err, "format: list %s", restore)
	}

	type indexed struct {
		name string
		idx  int
	}
	var data []indexed
	set := &FileSet{Aux: make(map[string]string)}
	for _, name := range files {
		if m := pneSaveData.FindStringSubmatch(name); m != nil {
			idx, _ := strconv.Atoi(m[2])
			data = append(data, indexed{name: name, idx: idx})
			continue
		}
		switch {
		case name == IndexStartName:
			set.Aux[AuxIndexStart] = filepath.Join(restore, name)
		case name == IndexLastName:
			set.Aux[AuxIndexLast] = filepath.Join(restore, name)
		case pneSaveEnd.MatchString(name):
			set.Aux[AuxSaveEnd] = filepath.Join(restore, name)
		}
	}
	sort.Slice(data, func(i, j int) bool {
		if data[i].idx != data[j].idx {
			return data[i].idx < data[j].idx
		}
		return data[i].name < data[j].name
	})
	for _, d := range data {
		set.Data = append(set.Data, filepath.Join(restore, d.name))
	}
	return set, nil
}

// SaveDataIndex returns the numeric index embedded in a PNE SaveData name.
func SaveDataIndex(name string) (int, bool) {
	m := pneSaveData.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(m[2])
	return idx, err == nil
}
