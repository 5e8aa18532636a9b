package benchmark

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/huggingduck/huggingduck/internal/store"
)

// Row is a manifest row that can be written as CSV.
type Row interface {
	Header() []string
	Record() []string
}

func EncodeCSV[T Row](rows []T) ([]byte, error) {
	var zero T
	buf := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buf)
	if err := writer.Write(zero.Header()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.Record()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeParquet[T any](rows []T) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("rows are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// File is one encoded dataset file, keyed relative to the dataset root.
type File struct {
	Key         string
	ContentType string
	Data        []byte
}

// Files encodes both manifests in each requested format.
func (d Dataset) Files(formats ...store.Format) ([]File, error) {
	if len(formats) == 0 {
		formats = []store.Format{store.FormatCSV}
	}
	files := make([]File, 0, 2*len(formats))
	for _, format := range formats {
		var original, corrected []byte
		var contentType string
		var err error
		switch format {
		case store.FormatCSV:
			contentType = "text/csv"
			if original, err = EncodeCSV(d.Original); err == nil {
				corrected, err = EncodeCSV(d.Corrected)
			}
		case store.FormatParquet:
			contentType = "application/vnd.apache.parquet"
			if original, err = EncodeParquet(d.Original); err == nil {
				corrected, err = EncodeParquet(d.Corrected)
			}
		default:
			return nil, fmt.Errorf("unsupported format %q", format)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", format, err)
		}
		files = append(files,
			File{Key: "original." + string(format), ContentType: contentType, Data: original},
			File{Key: "corrected_v1." + string(format), ContentType: contentType, Data: corrected},
		)
	}
	return files, nil
}
