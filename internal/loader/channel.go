package loader

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/format"
	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// ChannelResult is one channel's aggregated tables. Data and Capacity are
// never nil; an unreadable channel has empty tables and a non-nil Err.
type ChannelResult struct {
	Name        string
	Path        string
	Variant     model.Variant
	Data        *frame.Frame
	Capacity    *frame.Frame
	Aux         map[string]*frame.Frame
	HeaderLine  int
	Preamble    string
	Files       []string
	FailedFiles []string
	SkippedRows int
	Info        map[string]string
	Err         error
}

// auxOrder is the order PNE auxiliary files are read after the data files.
var auxOrder = []string{format.AuxIndexStart, format.AuxIndexLast, format.AuxSaveEnd}

// loadChannel parses one channel. The returned error is non-nil only when
// ctx is done; every other failure is recorded on the result.
func (l *Loader) loadChannel(ctx context.Context, ch format.Channel, f model.Format, tr *tracker) (*ChannelResult, error) {
	res := &ChannelResult{
		Name:       ch.Name,
		Path:       ch.Path,
		Data:       frame.New(),
		Capacity:   frame.New(),
		HeaderLine: -1,
	}
	log := zap.L().With(zap.String("channel", ch.Name))

	files, err := format.Files(ch, f)
	if err != nil {
		res.Err = eris.Wrapf(err, "loader: list channel %s", ch.Name)
		log.Error("channel load failed", zap.Error(res.Err))
		return res, nil
	}

	switch f {
	case model.FormatToyo:
		err = l.loadToyo(ctx, res, files, tr)
	case model.FormatPNE:
		err = l.loadPNE(ctx, res, files, tr)
	default:
		err = eris.Errorf("loader: no channel loader for %s", f)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		res.Err = err
		log.Error("channel load failed", zap.Error(err))
		return res, nil
	}

	if len(res.Files) > 0 && len(res.FailedFiles) == len(res.Files) {
		res.Err = eris.Errorf("loader: all %d files of channel %s failed", len(res.Files), ch.Name)
		log.Error("channel load failed", zap.Error(res.Err))
	}

	log.Info("channel loaded",
		zap.String("variant", string(res.Variant)),
		zap.Int("files", len(res.Files)),
		zap.Int("failed_files", len(res.FailedFiles)),
		zap.Int("rows", res.Data.Len()),
		zap.Int("capacity_rows", res.Capacity.Len()),
		zap.Int("skipped_rows", res.SkippedRows),
	)
	return res, nil
}

func (l *Loader) loadToyo(ctx context.Context, res *ChannelResult, files *format.FileSet, tr *tracker) error {
	res.Variant = model.VariantToyo2
	headerLine := -1
	if len(files.Data) > 0 {
		info, err := format.LocateHeader(l.reader, files.Data[0], l.opts.DefaultHeaderLine)
		if err != nil {
			zap.L().Warn("cannot read first file for header, locating per file",
				zap.String("channel", res.Name),
				zap.Error(err),
			)
		} else {
			res.Variant = format.ToyoVariant(info.Text)
			headerLine = info.Line
		}
	}
	res.HeaderLine = headerLine

	h, err := l.registry.Get(res.Variant)
	if err != nil {
		return err
	}

	frames := make([]*frame.Frame, 0, len(files.Data))
	for _, path := range files.Data {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: cancelled")
		}
		fr, err := h.ParseFile(ctx, path, format.ParseOptions{
			HeaderLine:        headerLine,
			DefaultHeaderLine: l.opts.DefaultHeaderLine,
		})
		res.absorb(path, fr, err)
		frames = append(frames, fr.Frame)
		tr.file(res.Name, path)
	}
	res.Data = frame.Concat(frames...)

	if files.Capacity != "" {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: cancelled")
		}
		fr, err := h.ParseCapacityLog(ctx, files.Capacity)
		res.absorb(files.Capacity, fr, err)
		res.Capacity = fr.Frame
		tr.file(res.Name, files.Capacity)
	}
	return nil
}

func (l *Loader) loadPNE(ctx context.Context, res *ChannelResult, files *format.FileSet, tr *tracker) error {
	res.Variant = model.VariantPNE
	if info, ok := format.ParseChannelName(res.Name); ok {
		res.Info = map[string]string{
			"module":      info.Module,
			"channel_num": strconv.Itoa(info.ChannelNum),
			"channel_id":  strconv.Itoa(info.ChannelID),
		}
	}

	h, err := l.registry.Get(model.VariantPNE)
	if err != nil {
		return err
	}

	frames := make([]*frame.Frame, 0, len(files.Data))
	for _, path := range files.Data {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: cancelled")
		}
		fr, err := h.ParseFile(ctx, path, format.ParseOptions{HeaderLine: -1})
		res.absorb(path, fr, err)
		frames = append(frames, fr.Frame)
		tr.file(res.Name, path)
	}
	res.Data = frame.Concat(frames...)

	res.Aux = make(map[string]*frame.Frame, len(files.Aux))
	for _, key := range auxOrder {
		path, ok := files.Aux[key]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: cancelled")
		}
		var fr *format.FileResult
		if ip, isIndex := h.(format.IndexParser); isIndex && key != format.AuxSaveEnd {
			fr, err = ip.ParseIndexFile(ctx, path)
		} else {
			fr, err = h.ParseFile(ctx, path, format.ParseOptions{HeaderLine: -1})
		}
		res.absorb(path, fr, err)
		res.Aux[key] = fr.Frame
		tr.file(res.Name, path)
	}
	return nil
}

// absorb records one file's outcome. A failed file contributes an empty
// frame and an error log line.
func (r *ChannelResult) absorb(path string, fr *format.FileResult, err error) {
	r.Files = append(r.Files, path)
	if err != nil {
		r.FailedFiles = append(r.FailedFiles, path)
		zap.L().Error("file parse failed",
			zap.String("channel", r.Name),
			zap.String("file", filepath.Base(path)),
			zap.Error(err),
		)
		fr.Frame = frame.New()
		return
	}
	r.SkippedRows += fr.Skipped
	if r.Preamble == "" {
		r.Preamble = fr.Preamble
	}
}
