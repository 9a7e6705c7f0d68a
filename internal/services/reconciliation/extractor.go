package reconciliation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"agentic-reconciliation-backend/internal/models"
)

// Supported upload formats.
const (
	FileTypeCSV  = "csv"
	FileTypeJSON = "json"
)

var (
	// ErrUnsupportedFileType is returned for uploads that are neither CSV nor JSON.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrMalformedInput is returned when an upload or body cannot be read as
	// a list of transactions.
	ErrMalformedInput = errors.New("malformed transaction input")
)

// ExtractResult is the extraction stage output.
type ExtractResult struct {
	BatchID      *uuid.UUID            `json:"batch_id,omitempty"`
	InsertedIDs  []uuid.UUID           `json:"inserted_ids"`
	Transactions []*models.Transaction `json:"transactions"`
}

// DetectFileType maps a file name to a supported upload format.
func DetectFileType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FileTypeCSV, nil
	case ".json":
		return FileTypeJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(filename))
	}
}

// ParseTransactions decodes an upload. CSV uses the header row as keys;
// JSON is either an array of objects or an object with a "transactions"
// array.
func ParseTransactions(fileType string, content []byte) ([]*models.Transaction, error) {
	switch fileType {
	case FileTypeCSV:
		return parseCSV(content)
	case FileTypeJSON:
		return parseJSON(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType)
	}
}

func parseCSV(content []byte) ([]*models.Transaction, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if firstLine, _, _ := bytes.Cut(content, []byte("\n")); !bytes.Contains(firstLine, []byte(",")) && bytes.Contains(firstLine, []byte("\t")) {
		reader.Comma = '\t'
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading CSV header: %v", ErrMalformedInput, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var txs []*models.Transaction
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: CSV row %d: %v", ErrMalformedInput, row, err)
		}
		// Skip completely blank rows
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		obj := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" || i >= len(record) {
				continue
			}
			obj[key] = strings.TrimSpace(record[i])
		}

		raw, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		var tx models.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("%w: CSV row %d: %v", ErrMalformedInput, row, err)
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

func parseJSON(content []byte) ([]*models.Transaction, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var txs []*models.Transaction
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	case '{':
		var wrapper struct {
			Transactions *[]*models.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if wrapper.Transactions == nil {
			return nil, fmt.Errorf("%w: object has no transactions list", ErrMalformedInput)
		}
		txs = *wrapper.Transactions
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrMalformedInput)
	}

	for i, tx := range txs {
		if tx == nil {
			return nil, fmt.Errorf("%w: transaction %d is null", ErrMalformedInput, i)
		}
	}
	return txs, nil
}

// Extract parses an uploaded file, records an upload batch and inserts the
// transactions with freshly generated ids. An empty file writes nothing.
func (s *Service) Extract(ctx context.Context, filename string, content []byte) (*ExtractResult, error) {
	fileType, err := DetectFileType(filename)
	if err != nil {
		return nil, err
	}
	txs, err := ParseTransactions(fileType, content)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{
		InsertedIDs:  []uuid.UUID{},
		Transactions: []*models.Transaction{},
	}
	if len(txs) == 0 {
		s.logger.Info("no transactions in upload", "file", filename)
		return result, nil
	}

	now := s.now()
	batch := &models.UploadBatch{
		ID:                uuid.New(),
		Filename:          filename,
		FileType:          fileType,
		TotalTransactions: len(txs),
		Status:            models.BatchStatusExtracted,
		StartedAt:         now,
		CreatedAt:         now,
	}
	if err := s.txs.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("creating upload batch: %w", err)
	}

	for _, tx := range txs {
		tx.ID = uuid.New()
		tx.UploadBatchID = &batch.ID
		tx.Stage = models.StageExtracted
	}
	if err := s.txs.InsertTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("inserting transactions: %w", err)
	}

	result.BatchID = &batch.ID
	result.Transactions = txs
	for _, tx := range txs {
		result.InsertedIDs = append(result.InsertedIDs, tx.ID)
	}
	s.logger.Info("transactions extracted", "file", filename, "batch_id", batch.ID, "count", len(txs))
	return result, nil
}
