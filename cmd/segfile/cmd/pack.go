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

var packCmd = &cobra.Command{
	Use:   "pack <container> <file>...",
	Short: "Pack files into a new container",
	Long:  "Create a container holding a manifest segment followed by one segment per input file.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPack,
}

func init() {
	packCmd.Flags().Uint32("type", 1, "type tag for file segments")
	packCmd.Flags().Bool("assured", false, "wrap segments in an integrity envelope")
	packCmd.Flags().Bool("compressed", false, "compress segments")
	packCmd.Flags().String("codec", "", "codec for compressed segments (deflate, zstd, lz4)")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	s := loadSettings()
	if codec, _ := cmd.Flags().GetString("codec"); codec != "" {
		s.Codec = codec
	}
	opts, err := s.writerOptions(&logger)
	if err != nil {
		return err
	}
	typ, _ := cmd.Flags().GetUint32("type")
	var flags segfile.Flags
	if assured, _ := cmd.Flags().GetBool("assured"); assured {
		flags |= segfile.Assured
	}
	if compressed, _ := cmd.Flags().GetBool("compressed"); compressed {
		flags |= segfile.Compressed
	}
	if typ == manifestType {
		return fmt.Errorf("type %d is reserved for the manifest", manifestType)
	}
	return pack(args[0], args[1:], typ, flags, opts)
}

// pack writes the manifest and then each input as its own segment.
func pack(path string, inputs []string, typ uint32, flags segfile.Flags, opts segfile.Options) (err error) {
	w, err := segfile.Create(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = filepath.Base(in)
	}
	seg, err := w.BeginSegment(manifestType, flags)
	if err != nil {
		return err
	}
	err = writeManifest(seg, names)
	if err = errors.Join(err, seg.Close()); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	for _, in := range inputs {
		if err := packFile(w, in, typ, flags); err != nil {
			return fmt.Errorf("packing %s: %w", in, err)
		}
		logger.Info().Str("file", in).Msg("packed")
	}
	return nil
}

func packFile(w *segfile.Writer, path string, typ uint32, flags segfile.Flags) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	seg, err := w.BeginSegment(typ, flags)
	if err != nil {
		return err
	}
	_, err = io.Copy(seg, f)
	return errors.Join(err, seg.Close())
}
