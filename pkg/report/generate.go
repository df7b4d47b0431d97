package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/condlab/chainmatch/pkg/ingest"
	"github.com/condlab/chainmatch/pkg/match"
	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/static"
)

// Writer emits records as JSON lines.
type Writer struct {
	enc *json.Encoder
}

// NewWriter wraps w for JSONL output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write emits one record line.
func (w *Writer) Write(rec Record) error {
	return w.enc.Encode(rec)
}

// Generate runs the full offline pipeline: read the runtime log, frame
// assertion windows, assemble records and write them to cfg.Out ("-" for
// stdout). Returns the number of records written.
func Generate(ctx context.Context, cfg *Config) (int, error) {
	in, err := ingest.OpenLog(cfg.Logs)
	if err != nil {
		return 0, fmt.Errorf("failed to open runtime log: %w", err)
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if cfg.Out != "" && cfg.Out != "-" {
		f, err := os.Create(cfg.Out)
		if err != nil {
			return 0, fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	m := meta.Load(cfg.Meta)

	var matcher *match.Matcher
	if cfg.Approx.Enabled {
		matcher = match.New(static.Build(m))
	}
	builder := NewBuilder(m, matcher, Options{
		DedupeConds: cfg.DedupeConds,
		Approx:      cfg.Approx.Enabled,
		ApproxOpts:  cfg.Approx.MatchOptions(),
	})

	var narrator *Narrator
	if cfg.Narrate {
		n, err := NewNarrator(ctx)
		if err != nil {
			// narration is opportunistic; report without it
			slog.Warn("narrator unavailable", "error", err)
		} else {
			narrator = n
			defer narrator.Close()
		}
	}

	writer := NewWriter(out)
	filter := ingest.Filter{Suite: cfg.Suite, Test: cfg.Test}
	count := 0
	err = ingest.Scan(in, filter, func(w ingest.Window) error {
		rec := builder.Build(w)
		if narrator != nil {
			if text, nerr := narrator.Narrate(ctx, rec); nerr == nil {
				rec.Narrative = text
			} else {
				slog.Debug("narration failed", "record", rec.ID, "error", nerr)
			}
		}
		count++
		return writer.Write(rec)
	})
	if err != nil {
		return count, err
	}

	slog.Info("report complete", "records", count, "out", cfg.Out)
	return count, nil
}
