package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"priceScope/internal/model"
)

// JsonlStorage appends price quotes to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutQuoteBatch appends a batch of quotes as JSON lines.
func (s *JsonlStorage) PutQuoteBatch(_ context.Context, quotes []model.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteJSONLines(writer, quotes); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// WriterStorage writes quotes as JSON lines to an open writer such as stdout.
type WriterStorage struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterStorage(w io.Writer) *WriterStorage {
	return &WriterStorage{w: w}
}

func (s *WriterStorage) PutQuoteBatch(_ context.Context, quotes []model.PriceQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writer := bufio.NewWriter(s.w)
	if err := WriteJSONLines(writer, quotes); err != nil {
		return err
	}
	return writer.Flush()
}

// WriteJSONLines encodes quotes one per line.
func WriteJSONLines(writer *bufio.Writer, quotes []model.PriceQuote) error {
	for _, quote := range quotes {
		line, err := json.Marshal(quote)
		if err != nil {
			return fmt.Errorf("marshal price quote: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write price quote: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	return nil
}
