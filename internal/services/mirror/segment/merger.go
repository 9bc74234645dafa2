package segment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/services/mirror/domain"
)

// ArtifactPath names the batch artifact for the ingestion day (UTC)
func ArtifactPath(dataDir string, day time.Time) string {
	return filepath.Join(dataDir, "items_"+day.UTC().Format("2006-01-02")+".ndjson")
}

// Merger concatenates completed segments into the dated artifact
type Merger struct {
	DataDir string
}

// Merge writes segs, in the order given, to the artifact for day.
// The artifact only appears once every segment was copied
func (m Merger) Merge(ctx context.Context, segs []domain.Segment, day time.Time) (domain.Artifact, error) {
	start := time.Now()
	path := ArtifactPath(m.DataDir, day)

	// check up front so a missing segment never leaves a partial temp file behind
	for _, s := range segs {
		if _, err := os.Stat(s.Path); err != nil {
			return domain.Artifact{}, perr.Wrapf(err, perr.ErrorCodeMerge, "merge: segment of worker %d", s.Worker)
		}
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return domain.Artifact{}, perr.Wrapf(err, perr.ErrorCodeMerge, "merge: create %s", tmp)
	}
	fail := func(err error, format string, a ...any) (domain.Artifact, error) {
		_ = out.Close()
		_ = os.Remove(tmp)
		return domain.Artifact{}, perr.Wrapf(err, perr.ErrorCodeMerge, format, a...)
	}

	var written, lines int64
	for _, s := range segs {
		if err := ctx.Err(); err != nil {
			return fail(err, "merge: cancelled")
		}
		n, err := appendFile(out, s.Path)
		if err != nil {
			return fail(err, "merge: copy segment of worker %d", s.Worker)
		}
		written += n
		lines += s.Lines
	}
	if err := out.Sync(); err != nil {
		return fail(err, "merge: sync %s", tmp)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return domain.Artifact{}, perr.Wrapf(err, perr.ErrorCodeMerge, "merge: close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return domain.Artifact{}, perr.Wrapf(err, perr.ErrorCodeMerge, "merge: rename %s", path)
	}

	logger.C(ctx).Info().
		Str("artifact", path).
		Int("segments", len(segs)).
		Int64("lines", lines).
		Int64("bytes", written).
		Dur("elapsed", time.Since(start)).
		Msg("mirror: segments merged")

	return domain.Artifact{Path: path, Day: day.UTC(), Lines: lines, Bytes: written}, nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	n, err := io.Copy(dst, f)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", path, err)
	}
	return n, nil
}
