package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/huggingduck/huggingduck/internal/storage"
)

const readme = `# Titanic data quality benchmark

original: passenger manifest as published.
corrected_v1: the same manifest with corrected ages; rows whose age was
changed carry is_age_discrepancy = true.
`

// Publish writes files and a README under datasetID so that a dataset
// source reading from the same store resolves datasetID to these tables.
func Publish(ctx context.Context, writer storage.ObjectWriter, datasetID string, files []File, logger *slog.Logger) ([]storage.ObjectInfo, error) {
	if writer == nil {
		return nil, fmt.Errorf("object writer is required")
	}
	datasetID = strings.Trim(strings.TrimSpace(datasetID), "/")
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	files = append(append([]File(nil), files...), File{Key: "README.md", ContentType: "text/markdown", Data: []byte(readme)})
	published := make([]storage.ObjectInfo, 0, len(files))
	for _, file := range files {
		key := path.Join(datasetID, file.Key)
		info, err := writer.Put(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), storage.PutOptions{ContentType: file.ContentType})
		if err != nil {
			return published, fmt.Errorf("publish %q: %w", key, err)
		}
		logger.InfoContext(ctx, "published benchmark file",
			slog.String("dataset", datasetID),
			slog.String("key", info.Key),
			slog.Int64("bytes", info.Size),
		)
		published = append(published, info)
	}
	return published, nil
}
