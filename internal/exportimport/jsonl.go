package exportimport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// DefaultImportBatchSize is the default batch size for streaming JSONL
// import.
const DefaultImportBatchSize = 100

// ExportJSONL writes one JSON object per line, one per record. A record
// that fails to marshal is recorded in Errors and skipped rather than
// aborting the whole export.
func ExportJSONL(w io.Writer, records []MemoryRecord) (ExportStats, error) {
	stats := ExportStats{Total: uint64(len(records))}

	bw := bufio.NewWriter(w)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("encode error for %s: %v", rec.ID, err))
			continue
		}
		if _, err := bw.Write(line); err != nil {
			return stats, fmt.Errorf("exportimport: write jsonl line: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return stats, fmt.Errorf("exportimport: write jsonl newline: %w", err)
		}
		stats.Exported++
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("exportimport: flush jsonl: %w", err)
	}
	return stats, nil
}

// ExportJSONLCompressed writes a zstd-compressed JSONL stream, for callers
// archiving exports to cold storage. Decompress with any standard zstd
// reader (or ImportJSONLCompressed) before parsing.
func ExportJSONLCompressed(w io.Writer, records []MemoryRecord) (ExportStats, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return ExportStats{}, fmt.Errorf("exportimport: create zstd writer: %w", err)
	}
	stats, exportErr := ExportJSONL(zw, records)
	if closeErr := zw.Close(); closeErr != nil && exportErr == nil {
		exportErr = fmt.Errorf("exportimport: close zstd writer: %w", closeErr)
	}
	return stats, exportErr
}

// ImportJSONLCompressed transparently decompresses a zstd-compressed JSONL
// stream produced by ExportJSONLCompressed before importing it.
func ImportJSONLCompressed(ctx context.Context, r io.Reader, batchSize int, importBatch ImportBatchFunc) (ImportStats, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return ImportStats{}, fmt.Errorf("exportimport: create zstd reader: %w", err)
	}
	defer zr.Close()
	return ImportJSONL(ctx, zr, batchSize, importBatch)
}

// ImportBatchFunc persists one batch of parsed records, returning how many
// were actually imported. The remainder (batch size minus the returned
// count) is attributed to Skipped, e.g. for caller-side deduplication.
type ImportBatchFunc func(ctx context.Context, batch []MemoryRecord) (int, error)

// ImportJSONL reads newline-delimited JSON records from r and hands them to
// importBatch in batches of batchSize (DefaultImportBatchSize if <= 0).
// Blank lines are skipped; malformed lines are recorded as parse errors
// without aborting the import.
func ImportJSONL(ctx context.Context, r io.Reader, batchSize int, importBatch ImportBatchFunc) (ImportStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}

	stats := ImportStats{}
	batch := make([]MemoryRecord, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := importBatch(ctx, batch)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("batch import error: %v", err))
		} else {
			stats.Imported += uint64(n)
			stats.Skipped += uint64(len(batch) - n)
		}
		batch = make([]MemoryRecord, 0, batchSize)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Total++

		var rec MemoryRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("parse error at line %d: %v", stats.Total, err))
			continue
		}
		batch = append(batch, rec)

		if len(batch) >= batchSize {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("exportimport: read jsonl: %w", err)
	}

	flush()
	return stats, nil
}
