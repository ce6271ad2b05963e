package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vigil-proto/vigil-go/pkg/log"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// RunExport converts a log file to JSONL or CSV.
func RunExport(path, format string, w io.Writer) error {
	switch format {
	case FormatJSONL:
		return exportJSONL(path, w)
	case FormatCSV:
		return exportCSV(path, w)
	default:
		return fmt.Errorf("invalid format: %s (must be jsonl or csv)", format)
	}
}

func exportJSONL(path string, w io.Writer) error {
	enc := json.NewEncoder(w)
	return withReader(path, func(reader *log.Reader) error {
		for {
			event, err := reader.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read event: %w", err)
			}
			if err := enc.Encode(event); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
		}
	})
}

func exportCSV(path string, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := withReader(path, func(reader *log.Reader) error {
		for {
			event, err := reader.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read event: %w", err)
			}
			record := []string{
				event.Timestamp.UTC().Format(time.RFC3339Nano),
				event.ConnectionID,
				event.Direction.String(),
				event.Layer.String(),
				event.Category.String(),
				eventDetail(event),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// eventDetail summarizes the type-specific payload in one cell.
func eventDetail(event log.Event) string {
	switch {
	case event.Frame != nil:
		return fmt.Sprintf("frame %d bytes", event.Frame.Size)
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.StateChange != nil:
		if event.StateChange.Reason != "" {
			return fmt.Sprintf("%s -> %s (%s)", event.StateChange.OldState, event.StateChange.NewState, event.StateChange.Reason)
		}
		return fmt.Sprintf("%s -> %s", event.StateChange.OldState, event.StateChange.NewState)
	case event.Error != nil:
		return event.Error.Message
	default:
		return ""
	}
}
