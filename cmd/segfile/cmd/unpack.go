package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jpl-au/segfile"
	"github.com/spf13/cobra"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <container> <dir>",
	Short: "Extract files packed with pack",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnpack,
}

func init() {
	rootCmd.AddCommand(unpackCmd)
}

func runUnpack(cmd *cobra.Command, args []string) error {
	opts, err := loadSettings().options(&logger)
	if err != nil {
		return err
	}
	return unpack(args[0], args[1], opts)
}

// unpack restores every file listed in the manifest into dir.
func unpack(path, dir string, opts segfile.Options) (err error) {
	r, err := segfile.Open(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	seg, err := r.NextOfType(manifestType)
	if err != nil {
		return fmt.Errorf("locating manifest: %w", err)
	}
	names, err := readManifest(seg)
	if err = errors.Join(err, seg.Close()); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, name := range names {
		if name != filepath.Base(name) || name == "." || name == ".." {
			return fmt.Errorf("manifest entry %q is not a plain file name", name)
		}
		seg, err := r.Next()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", name, err)
		}
		if err := extract(seg, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("extracting %s: %w", name, err)
		}
	}
	return nil
}

func extract(seg *segfile.Segment, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		seg.Close()
		return err
	}
	_, err = io.Copy(f, seg)
	return errors.Join(err, seg.Close(), f.Close())
}
