// Container rewrite.
//
// Rewrite copies every kept segment of a container into a fresh one with
// new options: another digest algorithm, another signing key, another
// codec. Segments keep their type tag, flags and order. Dropped segments
// are simply not copied, so the rewrite also reclaims their space.
//
// The new container is written to a .tmp sibling, synced, and renamed over
// the original. A crash before the rename leaves the original intact and at
// worst orphans the .tmp file, which the next Rewrite truncates.
package segfile

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// RewriteOptions configures Rewrite.
type RewriteOptions struct {
	Source Options            // How the existing container is read and verified
	Target Options            // Signing, digest and codec for the new container
	Keep   func(Record) bool // nil keeps every segment
}

// RewriteStats reports what a rewrite did.
type RewriteStats struct {
	Kept, Dropped int
	Before, After int64 // Container sizes in bytes
}

// Rewrite rebuilds the container at path. Every kept segment is verified
// under Source before it is copied; the first failure aborts the rewrite and
// leaves the original untouched.
func Rewrite(path string, opts RewriteOptions) (RewriteStats, error) {
	var stats RewriteStats
	r, err := Open(path, opts.Source)
	if err != nil {
		return stats, err
	}
	tmpPath := path + ".tmp"
	w, err := Create(tmpPath, opts.Target)
	if err != nil {
		r.Close()
		return stats, fmt.Errorf("rewrite: create temp: %w", err)
	}

	if err := copySegments(r, w, opts.Keep, &stats); err != nil {
		// Close can only fail here with a segment open, which copySegments
		// never leaves behind.
		w.Close()
		r.Close()
		os.Remove(tmpPath)
		return stats, err
	}
	stats.After = w.Size()
	if info, err := os.Stat(path); err == nil {
		stats.Before = info.Size()
	}

	if err := errors.Join(w.Close(), r.Close()); err != nil {
		os.Remove(tmpPath)
		return stats, fmt.Errorf("rewrite: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return stats, fmt.Errorf("rewrite: rename: %w", err)
	}
	w.log.Info().Str("path", path).
		Int("kept", stats.Kept).Int("dropped", stats.Dropped).
		Int64("before", stats.Before).Int64("after", stats.After).
		Msg("container rewritten")
	return stats, nil
}

func copySegments(r *Reader, w *Writer, keep func(Record) bool, stats *RewriteStats) error {
	for i, rec := range r.Records() {
		if keep != nil && !keep(rec) {
			stats.Dropped++
			continue
		}
		// Skip straight to the record; NextOfType would match an earlier
		// dropped segment of the same type.
		r.cursor = i
		src, err := r.Next()
		if err != nil {
			return err
		}
		var flags Flags
		if rec.Assured {
			flags |= Assured
		}
		if rec.Compressed {
			flags |= Compressed
		}
		dst, err := w.BeginSegment(rec.Type, flags)
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		if err = errors.Join(err, dst.Close(), src.Close()); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		stats.Kept++
	}
	return nil
}
