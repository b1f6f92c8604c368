// internal/dataset/loader.go
// Package dataset loads preference pairs from local JSON and JSONL files,
// validates them, and renders raw completions into model-ready texts.
package dataset

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var recordSchemaJSON []byte

var recordSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("dataset: invalid embedded record schema: %v", err))
	}
	recordSchema = schema
}

// Load reads every record in path. A .jsonl file holds one record per line; a
// .json file holds either an array of records or an object keyed by split name,
// in which case split selects the records.
func Load(path, split string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	var raws []json.RawMessage
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		raws, err = splitLines(data)
	} else {
		raws, err = splitDocument(data, split)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}

	records := make([]Record, 0, len(raws))
	for i, raw := range raws {
		if err := validateRecord(raw); err != nil {
			return nil, fmt.Errorf("dataset %s record %d: %w", path, i, err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("dataset %s record %d: %w", path, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func splitLines(data []byte) ([]json.RawMessage, error) {
	var raws []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		raws = append(raws, json.RawMessage(append([]byte(nil), text...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raws, nil
}

func splitDocument(data []byte, split string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch trimmed[0] {
	case '[':
		if split != "" {
			return nil, fmt.Errorf("split %q requested but the file holds a single array", split)
		}
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	case '{':
		var splits map[string][]json.RawMessage
		if err := json.Unmarshal(trimmed, &splits); err != nil {
			return nil, fmt.Errorf("expected an object of splits: %w", err)
		}
		names := make([]string, 0, len(splits))
		for name := range splits {
			names = append(names, name)
		}
		sort.Strings(names)
		if split == "" {
			if len(names) == 1 {
				return splits[names[0]], nil
			}
			return nil, fmt.Errorf("file holds several splits, choose one of: %s", strings.Join(names, ", "))
		}
		raws, ok := splits[split]
		if !ok {
			return nil, fmt.Errorf("split %q not found, available: %s", split, strings.Join(names, ", "))
		}
		return raws, nil
	default:
		return nil, fmt.Errorf("expected a JSON array or object")
	}
}

func validateRecord(raw json.RawMessage) error {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("invalid record: %s", strings.Join(errs, ", "))
}

// Debug keeps the first DebugSize items.
func Debug[T any](items []T) []T {
	if len(items) <= DebugSize {
		return items
	}
	return items[:DebugSize]
}

// Batches partitions examples into consecutive batches of size, preserving order.
// The final batch may be shorter.
func Batches(examples []Example, size int) ([][]Example, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", size)
	}
	batches := make([][]Example, 0, (len(examples)+size-1)/size)
	for start := 0; start < len(examples); start += size {
		end := min(start+size, len(examples))
		batches = append(batches, examples[start:end:end])
	}
	return batches, nil
}

// Subsets returns the subset label of every example, or nil when the dataset
// is unlabeled. A partially labeled dataset is an error.
func Subsets(examples []Example) ([]string, error) {
	labels := make([]string, len(examples))
	labeled := 0
	for i, ex := range examples {
		labels[i] = ex.Subset
		if ex.Subset != "" {
			labeled++
		}
	}
	switch labeled {
	case 0:
		return nil, nil
	case len(examples):
		return labels, nil
	default:
		return nil, fmt.Errorf("%d of %d examples carry a subset label; label all or none", labeled, len(examples))
	}
}
