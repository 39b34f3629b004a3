package format

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cycler-cli/internal/format/formattest"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/textio"
)

func newDetector() *Detector {
	return NewDetector(NewRegistry(textio.NewReader()))
}

func TestDetect_Toyo(t *testing.T) {
	root := t.TempDir()
	formattest.WriteToyoRoot(t, root, "93", 3, 10, false)

	det, err := newDetector().Detect(root, "")
	require.NoError(t, err)

	assert.Equal(t, model.FormatToyo, det.Format)
	assert.Equal(t, 4, det.Scores[model.FormatToyo]) // 2 + capacity log + data files
	assert.Equal(t, 0, det.Scores[model.FormatPNE])
	assert.False(t, det.Hinted)
}

func TestDetect_PNE(t *testing.T) {
	root := t.TempDir()
	formattest.WritePNERoot(t, root, "M01Ch003[003]", 2, 5)
	require.NoError(t, os.Mkdir(filepath.Join(root, "Pattern"), 0o755))

	det, err := newDetector().Detect(root, model.FormatUnknown)
	require.NoError(t, err)

	assert.Equal(t, model.FormatPNE, det.Format)
	assert.Equal(t, 6, det.Scores[model.FormatPNE]) // 2 + Restore + SaveData + index + Pattern
}

func TestDetect_Deterministic(t *testing.T) {
	root := t.TempDir()
	formattest.WritePNERoot(t, root, "M01Ch001[001]", 1, 3)
	formattest.WritePNERoot(t, root, "M01Ch002[002]", 1, 3)

	d := newDetector()
	first, err := d.Detect(root, "")
	require.NoError(t, err)
	second, err := d.Detect(root, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetect_TieIsUnknown(t *testing.T) {
	root := t.TempDir()
	// Bare numeric dir (+2) and bare Ch dir (+2).
	require.NoError(t, os.Mkdir(filepath.Join(root, "1"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "M01Ch001"), 0o755))

	det, err := newDetector().Detect(root, "")
	require.NoError(t, err)
	assert.Equal(t, model.FormatUnknown, det.Format)
	assert.Equal(t, 2, det.Scores[model.FormatToyo])
	assert.Equal(t, 2, det.Scores[model.FormatPNE])
}

func TestDetect_EmptyRootIsUnknown(t *testing.T) {
	det, err := newDetector().Detect(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, model.FormatUnknown, det.Format)
}

func TestDetect_HintBypassesScoring(t *testing.T) {
	det, err := newDetector().Detect(t.TempDir(), model.FormatPNE)
	require.NoError(t, err)
	assert.Equal(t, model.FormatPNE, det.Format)
	assert.True(t, det.Hinted)
	assert.Nil(t, det.Scores)
}

func TestDetect_MissingRoot(t *testing.T) {
	_, err := newDetector().Detect(filepath.Join(t.TempDir(), "nope"), "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrPathNotFound))
}

func TestDetect_InspectsAtMostThreeChannels(t *testing.T) {
	root := t.TempDir()
	for _, ch := range []string{"1", "2", "3", "4", "5"} {
		formattest.WriteFile(t, filepath.Join(root, ch), "CAPACITY.LOG", formattest.CapacityHeader+"\n")
	}

	score, err := scoreToyo(root)
	require.NoError(t, err)
	assert.Equal(t, 5, score) // 2 + one per inspected capacity log
}
