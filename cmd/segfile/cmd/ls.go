package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/jpl-au/segfile"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <container>",
	Short: "List the segments in a container",
	Long:  "Print the header table of a container without reading segment bodies.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().Bool("json", false, "print records as JSON")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	opts, err := loadSettings().options(&logger)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	return list(os.Stdout, args[0], opts, asJSON)
}

func list(out io.Writer, path string, opts segfile.Options, asJSON bool) error {
	r, err := segfile.Open(path, opts)
	if err != nil {
		return err
	}
	records := r.Records()
	if err := r.Close(); err != nil {
		return err
	}

	if asJSON {
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "(no segments)")
		return err
	}
	for i, rec := range records {
		fmt.Fprintf(out, "%d\ttype=%d\t%s\t@%d\t%s\n", i, rec.Type, flagString(rec), rec.Start, humanize.IBytes(uint64(rec.Length)))
	}
	return nil
}

func flagString(rec segfile.Record) string {
	var parts []string
	if rec.Assured {
		parts = append(parts, "assured")
	}
	if rec.Compressed {
		parts = append(parts, rec.Codec.String())
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}
