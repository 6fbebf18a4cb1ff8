package exportimport

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetRow is the on-disk Parquet schema, a columnar mirror of
// MemoryRecord. JSON-valued fields (metadata, fsrs_state, dual_strength)
// are stored as UTF-8 strings rather than nested columns, matching the
// teacher's Arrow schema exactly.
type parquetRow struct {
	ID           string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Memory       string  `parquet:"name=memory, type=BYTE_ARRAY, convertedtype=UTF8"`
	Hash         *string `parquet:"name=hash, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Metadata     *string `parquet:"name=metadata, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CreatedAt    *string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	UpdatedAt    *string `parquet:"name=updated_at, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	FsrsState    *string `parquet:"name=fsrs_state, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	DualStrength *string `parquet:"name=dual_strength, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Category     *string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IsKey        bool    `parquet:"name=is_key, type=BOOLEAN"`
}

// parquetWriterConcurrency keeps row-group parallelism modest; export
// batches are small enough that more goroutines would only add scheduling
// overhead.
const parquetWriterConcurrency = 4

func toParquetRow(rec MemoryRecord) (parquetRow, error) {
	row := parquetRow{
		ID:     rec.ID,
		Memory: rec.Memory,
		IsKey:  rec.IsKey,
	}
	if rec.Hash != "" {
		row.Hash = &rec.Hash
	}
	if rec.CreatedAt != "" {
		row.CreatedAt = &rec.CreatedAt
	}
	if rec.UpdatedAt != "" {
		row.UpdatedAt = &rec.UpdatedAt
	}
	if rec.Category != "" {
		row.Category = &rec.Category
	}
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return parquetRow{}, fmt.Errorf("exportimport: marshal metadata for %s: %w", rec.ID, err)
		}
		s := string(b)
		row.Metadata = &s
	}
	if len(rec.FsrsState) > 0 {
		s := string(rec.FsrsState)
		row.FsrsState = &s
	}
	if len(rec.DualStrength) > 0 {
		s := string(rec.DualStrength)
		row.DualStrength = &s
	}
	return row, nil
}

func fromParquetRow(row parquetRow) MemoryRecord {
	rec := MemoryRecord{
		ID:     row.ID,
		Memory: row.Memory,
		IsKey:  row.IsKey,
	}
	if row.Hash != nil {
		rec.Hash = *row.Hash
	}
	if row.CreatedAt != nil {
		rec.CreatedAt = *row.CreatedAt
	}
	if row.UpdatedAt != nil {
		rec.UpdatedAt = *row.UpdatedAt
	}
	if row.Category != nil {
		rec.Category = *row.Category
	}
	if row.Metadata != nil {
		rec.Metadata = map[string]interface{}{}
		_ = json.Unmarshal([]byte(*row.Metadata), &rec.Metadata)
	}
	if row.FsrsState != nil {
		rec.FsrsState = json.RawMessage(*row.FsrsState)
	}
	if row.DualStrength != nil {
		rec.DualStrength = json.RawMessage(*row.DualStrength)
	}
	return rec
}

// ExportParquet writes records as a single-row-group Parquet file with ZSTD
// compression, the columnar mirror of ExportJSONL's schema.
func ExportParquet(w io.Writer, records []MemoryRecord) (ExportStats, error) {
	stats := ExportStats{Total: uint64(len(records))}
	if len(records) == 0 {
		return stats, nil
	}

	pFile := newMemParquetFile()
	pw, err := writer.NewParquetWriter(pFile, new(parquetRow), parquetWriterConcurrency)
	if err != nil {
		return stats, fmt.Errorf("exportimport: create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, rec := range records {
		row, err := toParquetRow(rec)
		if err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			continue
		}
		if err := pw.Write(row); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("write row %s: %v", rec.ID, err))
			continue
		}
		stats.Exported++
	}

	if err := pw.WriteStop(); err != nil {
		return stats, fmt.Errorf("exportimport: finalize parquet file: %w", err)
	}
	if _, err := io.Copy(w, pFile.reader()); err != nil {
		return stats, fmt.Errorf("exportimport: copy parquet output: %w", err)
	}
	return stats, nil
}

// ImportParquet reads every row out of a Parquet file produced by
// ExportParquet (or any writer using the same schema).
func ImportParquet(data []byte) ([]MemoryRecord, ImportStats, error) {
	stats := ImportStats{}

	pFile := newMemParquetFileFromBytes(data)
	pr, err := reader.NewParquetReader(pFile, new(parquetRow), parquetWriterConcurrency)
	if err != nil {
		return nil, stats, fmt.Errorf("exportimport: create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	stats.Total = uint64(numRows)
	if numRows == 0 {
		return nil, stats, nil
	}

	rows := make([]parquetRow, numRows)
	if err := pr.Read(&rows); err != nil {
		return nil, stats, fmt.Errorf("exportimport: read parquet rows: %w", err)
	}

	records := make([]MemoryRecord, 0, numRows)
	for _, row := range rows {
		records = append(records, fromParquetRow(row))
	}
	stats.Imported = uint64(len(records))
	return records, stats, nil
}

// memParquetFile is a minimal in-memory implementation of
// source.ParquetFile, used so export/import can work against any io.Writer
// or []byte without touching disk. The Parquet writer only ever seeks
// forward to patch already-written bytes (e.g. fixing up row-group
// metadata offsets), which a growable byte slice handles directly.
type memParquetFile struct {
	buf []byte
	pos int64
}

func newMemParquetFile() *memParquetFile {
	return &memParquetFile{}
}

func newMemParquetFileFromBytes(data []byte) *memParquetFile {
	return &memParquetFile{buf: data}
}

func (f *memParquetFile) reader() io.Reader {
	return &sliceReader{data: f.buf}
}

func (f *memParquetFile) Create(name string) (source.ParquetFile, error) {
	return &memParquetFile{}, nil
}

func (f *memParquetFile) Open(name string) (source.ParquetFile, error) {
	return &memParquetFile{buf: f.buf}, nil
}

func (f *memParquetFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(len(f.buf)) + offset
	default:
		return 0, fmt.Errorf("exportimport: invalid seek whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("exportimport: negative seek position %d", newPos)
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *memParquetFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memParquetFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memParquetFile) Close() error {
	return nil
}

// sliceReader is a tiny io.Reader over a byte slice, used to stream the
// finished in-memory Parquet file out to the caller's io.Writer.
type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
