package cmd

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/jpl-au/segfile"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <container>...",
	Short: "Check the integrity of every segment",
	Long:  "Open each container, verify every assured segment and read every body to the end.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// verifyResult is the outcome for one container.
type verifyResult struct {
	index    int
	Path     string
	Segments int
	Err      error
}

func runVerify(cmd *cobra.Command, args []string) error {
	s := loadSettings()
	opts, err := s.options(&logger)
	if err != nil {
		return err
	}
	failed := 0
	for _, res := range verifyAll(args, opts, s.Concurrency) {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "FAIL\t%s\t%v\n", res.Path, res.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "ok\t%s\t%d segments\n", res.Path, res.Segments)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d containers failed verification", failed, len(args))
	}
	return nil
}

// verifyAll checks containers in parallel, one reader per file, and returns
// results in argument order.
func verifyAll(paths []string, opts segfile.Options, concurrency int) []verifyResult {
	p := pool.NewWithResults[verifyResult]().WithMaxGoroutines(max(concurrency, 1))
	for i, path := range paths {
		p.Go(func() verifyResult {
			n, err := verifyContainer(path, opts)
			return verifyResult{index: i, Path: path, Segments: n, Err: err}
		})
	}
	results := p.Wait()
	slices.SortFunc(results, func(a, b verifyResult) int {
		return cmp.Compare(a.index, b.index)
	})
	return results
}

func verifyContainer(path string, opts segfile.Options) (n int, err error) {
	r, err := segfile.Open(path, opts)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		seg, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		_, err = io.Copy(io.Discard, seg)
		if cerr := seg.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return n, fmt.Errorf("segment %d: %w", n, err)
		}
		n++
	}
}
