// Package loader aggregates a data root's channel files and normalizes them
// into one canonical table.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/format"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/textio"
)

// Options configures a Loader.
type Options struct {
	// Format skips detection when set to TOYO or PNE.
	Format model.Format
	// Workers is the number of channels parsed at once. Files within a
	// channel are always parsed in order.
	Workers int
	// Encodings overrides the decode attempt order.
	Encodings []string
	// DefaultHeaderLine is used when no line of a Toyo file looks like a
	// header. Zero means format.DefaultHeaderLine.
	DefaultHeaderLine int
	// Progress, when set, is called after every file and every channel.
	// Calls are serialized.
	Progress func(Progress)
}

// Progress reports how far a load has come.
type Progress struct {
	Channel       string
	File          string
	FilesDone     int
	ChannelsDone  int
	ChannelsTotal int
}

// OptionsFromConfig maps the loader config section to Options.
func OptionsFromConfig(cfg config.LoaderConfig) (Options, error) {
	f, err := model.ParseFormat(cfg.Format)
	if err != nil {
		return Options{}, eris.Wrap(err, "loader: format hint")
	}
	return Options{
		Format:            f,
		Workers:           cfg.Workers,
		Encodings:         cfg.Encodings,
		DefaultHeaderLine: cfg.DefaultHeaderLine,
	}, nil
}

// Loader detects, aggregates and normalizes cycler data roots. A Loader
// holds no per-load state and may be reused.
type Loader struct {
	opts     Options
	reader   *textio.Reader
	registry *format.Registry
	detector *format.Detector
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DefaultHeaderLine <= 0 {
		opts.DefaultHeaderLine = format.DefaultHeaderLine
	}
	reader := textio.NewReader(opts.Encodings...)
	reg := format.NewRegistry(reader)
	return &Loader{
		opts:     opts,
		reader:   reader,
		registry: reg,
		detector: format.NewDetector(reg),
	}
}

// Detect reports the format family of root, honoring the configured hint.
func (l *Loader) Detect(root string) (*format.Detection, error) {
	return l.detector.Detect(root, l.opts.Format)
}

// Load detects the format of root, parses every channel and returns the
// normalized result. Only a missing root, an undetectable format or
// cancellation fail the load; unreadable files and channels yield empty
// tables and are logged.
func (l *Loader) Load(ctx context.Context, root string) (*model.StandardizedData, error) {
	start := time.Now()
	det, err := l.Detect(root)
	if err != nil {
		return nil, err
	}
	if det.Format == model.FormatUnknown {
		return nil, eris.Wrapf(model.ErrFormatUndetected, "loader: %s (toyo=%d, pne=%d)",
			root, det.Scores[model.FormatToyo], det.Scores[model.FormatPNE])
	}

	channels, err := l.Aggregate(ctx, root, det.Format)
	if err != nil {
		return nil, err
	}

	sd := Normalize(det.Format, channels)
	sd.Metadata.Root = root

	zap.L().Info("load complete",
		zap.String("root", root),
		zap.String("format", string(sd.Format)),
		zap.Int("channels", len(channels)),
		zap.Int("records", sd.Metadata.RecordCount),
		zap.Int("capacity_records", sd.Metadata.CapacityRecords),
		zap.Int("failed_files", sd.Metadata.FailedFiles),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sd, nil
}

// Aggregate parses every channel of root in discovery order. The returned
// slice has one entry per discovered channel, failed channels included.
func (l *Loader) Aggregate(ctx context.Context, root string, f model.Format) ([]*ChannelResult, error) {
	chans, err := format.Channels(root, f)
	if err != nil {
		return nil, err
	}

	results := make([]*ChannelResult, len(chans))
	tr := &tracker{fn: l.opts.Progress, total: len(chans)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, ch := range chans {
		g.Go(func() error {
			res, err := l.loadChannel(gctx, ch, f, tr)
			if err != nil {
				return err
			}
			results[i] = res
			tr.channel(ch.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "loader: aggregate")
	}
	return results, nil
}

// tracker serializes progress callbacks across channel workers.
type tracker struct {
	mu       sync.Mutex
	fn       func(Progress)
	files    int
	channels int
	total    int
}

func (t *tracker) file(channel, path string) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files++
	t.fn(Progress{Channel: channel, File: path, FilesDone: t.files, ChannelsDone: t.channels, ChannelsTotal: t.total})
}

func (t *tracker) channel(channel string) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels++
	t.fn(Progress{Channel: channel, FilesDone: t.files, ChannelsDone: t.channels, ChannelsTotal: t.total})
}
