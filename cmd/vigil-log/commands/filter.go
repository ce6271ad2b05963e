package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/vigil-proto/vigil-go/pkg/log"
)

// RunFilter writes the events matching filter to a new log file and returns
// the number of events written.
func RunFilter(path string, filter *log.Filter, outPath string) (int, error) {
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	w := log.NewWriter(out)
	matched := 0

	err = withReader(path, func(reader *log.Reader) error {
		for {
			event, err := reader.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read event: %w", err)
			}
			if filter != nil && !filter.Matches(event) {
				continue
			}
			if err := w.Write(event); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
			matched++
		}
	})
	if err != nil {
		return matched, err
	}
	return matched, nil
}
