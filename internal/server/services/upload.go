package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/logging"
	"github.com/dmitrijs2005/healthchat/internal/server/contextcache"
	"github.com/dmitrijs2005/healthchat/internal/server/sheets"
)

// Archiver keeps a copy of the raw upload. Implemented by archive.Archiver.
type Archiver interface {
	Enabled() bool
	Put(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error)
}

// UploadResult is what the upload endpoint reports back.
type UploadResult struct {
	Summary    string
	Rows       int
	StorageKey string
}

// UploadService seeds a user's context slot from an uploaded spreadsheet.
type UploadService struct {
	cache    contextcache.Cache
	archiver Archiver
	logger   logging.Logger
}

// NewUploadService wires the service. archiver may be nil.
func NewUploadService(cache contextcache.Cache, archiver Archiver, logger logging.Logger) *UploadService {
	return &UploadService{cache: cache, archiver: archiver, logger: logger.With("module", "upload")}
}

// Upload extracts the first sheet of the file, archives the raw bytes when
// object storage is configured, and replaces the user's context with the
// extracted rows. Unsupported files yield common.ErrUnsupportedFile.
func (s *UploadService) Upload(ctx context.Context, userID, fileName, contentType string, data []byte) (*UploadResult, error) {
	kind := sheets.Detect(fileName, contentType)
	if kind == sheets.KindUnknown {
		return nil, common.ErrUnsupportedFile
	}

	doc, err := sheets.Extract(kind, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	res := &UploadResult{Rows: doc.Rows}
	if s.archiver != nil && s.archiver.Enabled() {
		key, err := s.archiver.Put(ctx, userID, fileName, contentType, data)
		if err != nil {
			s.logger.Warn(ctx, "archive upload failed", "user_id", userID, "file", fileName, "error", err)
		} else {
			res.StorageKey = key
		}
	}

	res.Summary, err = s.setContext(ctx, userID, doc.Text, doc.Rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "context updated", "user_id", userID, "file", fileName, "rows", doc.Rows, "bytes", len(doc.Text))
	return res, nil
}

// SetContext replaces the user's context with text and returns the
// acknowledgement shown to the user. When text is a JSON array the row count
// is its length, otherwise the number of non-blank lines.
func (s *UploadService) SetContext(ctx context.Context, userID, text string) (string, error) {
	return s.setContext(ctx, userID, text, countRows(text))
}

func (s *UploadService) setContext(ctx context.Context, userID, text string, rows int) (string, error) {
	if err := s.cache.Put(ctx, userID, text); err != nil {
		return "", fmt.Errorf("%w: store context: %w", common.ErrPersistence, err)
	}
	return Summary(rows), nil
}

// Summary is the acknowledgement for a document with the given row count.
func Summary(rows int) string {
	return fmt.Sprintf("I have analyzed the uploaded Excel file. It contains %d rows of data. You can now ask me questions about it.", rows)
}

func countRows(text string) int {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return len(arr)
	}
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
