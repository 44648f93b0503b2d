package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/jpl-au/segfile"
	"github.com/spf13/cobra"
)

var repackCmd = &cobra.Command{
	Use:   "repack <container>",
	Short: "Rewrite a container with the current hash, key and codec settings",
	Long: `Verify every segment and copy it into a fresh container that replaces the
original. Use it to re-sign with a new key, switch digest algorithm or codec,
or drop segments by type.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepack,
}

func init() {
	repackCmd.Flags().String("from-hash", "", "digest algorithm of the existing container (default: --hash)")
	repackCmd.Flags().String("from-public-key", "", "public key that signed the existing container")
	repackCmd.Flags().String("codec", "", "codec for compressed segments (deflate, zstd, lz4)")
	repackCmd.Flags().UintSlice("drop-type", nil, "drop segments with this type tag (repeatable)")
	rootCmd.AddCommand(repackCmd)
}

func runRepack(cmd *cobra.Command, args []string) error {
	s := loadSettings()
	if codec, _ := cmd.Flags().GetString("codec"); codec != "" {
		s.Codec = codec
	}
	target, err := s.writerOptions(&logger)
	if err != nil {
		return err
	}

	fromHash, _ := cmd.Flags().GetString("from-hash")
	fromKey, _ := cmd.Flags().GetString("from-public-key")
	source, err := s.sourceSettings(fromHash, fromKey).options(&logger)
	if err != nil {
		return err
	}

	drop, _ := cmd.Flags().GetUintSlice("drop-type")
	stats, err := repack(args[0], source, target, drop)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "kept %d, dropped %d, %s -> %s\n", stats.Kept, stats.Dropped,
		humanize.IBytes(uint64(stats.Before)), humanize.IBytes(uint64(stats.After)))
	return nil
}

// sourceSettings describes the container being repacked. Without
// --from-public-key it verifies with --public-key, or failing that with the
// public half of --private-key, since a container is most often repacked
// by whoever signed it.
func (s settings) sourceSettings(fromHash, fromKey string) settings {
	if fromHash != "" {
		s.Hash = fromHash
	}
	if fromKey != "" {
		s.PublicKey = fromKey
	}
	return s
}

func repack(path string, source, target segfile.Options, drop []uint) (segfile.RewriteStats, error) {
	opts := segfile.RewriteOptions{Source: source, Target: target}
	if len(drop) > 0 {
		opts.Keep = func(r segfile.Record) bool {
			return !slices.Contains(drop, uint(r.Type))
		}
	}
	return segfile.Rewrite(path, opts)
}
