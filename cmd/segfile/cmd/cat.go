package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jpl-au/segfile"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <container> <index>",
	Short: "Write one segment's content to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	opts, err := loadSettings().options(&logger)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 {
		return fmt.Errorf("invalid segment index %q", args[1])
	}
	return catSegment(os.Stdout, args[0], index, opts)
}

// catSegment copies segment index to out. Segments before it are opened
// and closed in turn, which also verifies them.
func catSegment(out io.Writer, path string, index int, opts segfile.Options) (err error) {
	r, err := segfile.Open(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if index >= r.Len() {
		return fmt.Errorf("segment %d out of range, container has %d", index, r.Len())
	}
	for i := 0; ; i++ {
		seg, err := r.Next()
		if err != nil {
			return err
		}
		if i < index {
			if err := seg.Close(); err != nil {
				return err
			}
			continue
		}
		_, err = io.Copy(out, seg)
		return errors.Join(err, seg.Close())
	}
}
