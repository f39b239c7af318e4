// Package export writes caller-requested JSON and CSV artifacts beneath a
// sandboxed directory. Writes are fire-and-forget from the job's point of
// view; a failed export never touches job state.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Exporter writes into an os.Root so a suggested name can never escape the
// configured export directory.
type Exporter struct {
	root *os.Root
}

func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening export dir: %w", err)
	}
	return &Exporter{root: root}, nil
}

// JSON marshals data indented and writes it under a timestamped name
// derived from the suggestion. Returns the file name written.
func (e *Exporter) JSON(ctx context.Context, name string, data any) (string, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling export data: %w", err)
	}
	return e.write(ctx, name, "json", append(raw, '\n'))
}

// CSV writes an optional header followed by rows. Every row must have the
// same field count as the header when one is given.
func (e *Exporter) CSV(ctx context.Context, name string, header []string, rows [][]string) (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return "", fmt.Errorf("writing csv header: %w", err)
		}
	}
	for i, row := range rows {
		if len(header) > 0 && len(row) != len(header) {
			return "", fmt.Errorf("csv row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return e.write(ctx, name, "csv", []byte(buf.String()))
}

func (e *Exporter) Close() error {
	if e.root == nil {
		return errors.New("exporter already closed")
	}
	err := e.root.Close()
	e.root = nil
	return err
}

func (e *Exporter) write(ctx context.Context, name, ext string, b []byte) (string, error) {
	if e.root == nil {
		return "", errors.New("exporter already closed")
	}

	path := sanitize(name) + "-" + time.Now().Format("2006-01-02-15-04-05") + "." + ext
	f, err := e.root.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	_, err = f.Write(b)
	if err != nil {
		_ = f.Close()
		return "", fmt.Errorf("saving export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}
	slog.InfoContext(ctx, "export written", "path", path, "bytes", len(b))
	return path, nil
}

// sanitize reduces a caller suggestion to a safe file-name stem.
func sanitize(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "export"
	}
	return sb.String()
}
