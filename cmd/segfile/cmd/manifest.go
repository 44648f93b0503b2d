package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/jpl-au/segfile"
)

// manifestType tags the segment listing the names of packed files. It is
// always the first segment written by pack.
const manifestType = 0

// maxNameLen bounds a single stored file name.
const maxNameLen = 4096

func writeManifest(w io.Writer, names []string) error {
	if err := segfile.WriteInt(w, len(names)); err != nil {
		return err
	}
	for _, name := range names {
		if err := segfile.WriteByteArray(w, []byte(name)); err != nil {
			return err
		}
	}
	return nil
}

func readManifest(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	n, err := segfile.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	names := make([]string, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		name, err := segfile.ReadByteArray(br, maxNameLen)
		if err != nil {
			return nil, fmt.Errorf("reading manifest entry %d: %w", i, err)
		}
		names = append(names, string(name))
	}
	return names, nil
}
