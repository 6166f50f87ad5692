package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// CSVSink writes the records table only; summaries stay in the run log.
type CSVSink struct {
	path   string
	logger *slog.Logger
}

func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Write(ctx context.Context, result entity.RunResult) error {
	if err := ctx.Err(); err != nil {
		return common.SinkError(s.path, err)
	}
	var buf bytes.Buffer
	// UTF-8 BOM so spreadsheet tools read accents correctly.
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	if err := w.Write(RecordHeaders); err != nil {
		return common.SinkError(s.path, err)
	}
	for _, r := range result.Records {
		values := recordRow(r)
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = fmt.Sprint(v)
		}
		if err := w.Write(row); err != nil {
			return common.SinkError(s.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return common.SinkError(s.path, err)
	}
	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return common.SinkError(s.path, err)
	}
	s.logger.Info("export.csv.ok", "path", s.path, "rows", len(result.Records))
	return nil
}
