// Package store persists JSON documents keyed by date in a single flat file.
// Every write rewrites the whole file; the file is replaced atomically so a
// concurrent reader sees either the old or the new content.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"marketpulse/internal/model"
)

// File is a JSON object of key -> document on disk. A missing file reads as
// empty. Writers in one process are serialized; separate processes are not.
type File struct {
	Path string

	mu sync.Mutex
}

func NewFile(path string) *File { return &File{Path: path} }

func (f *File) read() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	docs := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformedInput, f.Path, err)
	}
	return docs, nil
}

// Put stores v under key, replacing any previous document.
func (f *File) Put(key string, v any) error {
	raw, err := encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	docs, err := f.read()
	if err != nil {
		return err
	}
	docs[key] = raw
	out, err := encode(docs)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.Path, err)
	}
	return f.replace(out)
}

// Get decodes the document under key into v. It reports false when the key is
// absent.
func (f *File) Get(key string, v any) (bool, error) {
	docs, err := f.read()
	if err != nil {
		return false, err
	}
	raw, ok := docs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		if errors.Is(err, model.ErrMalformedInput) {
			return false, err
		}
		return false, fmt.Errorf("%w: %s[%s]: %v", model.ErrMalformedInput, f.Path, key, err)
	}
	return true, nil
}

// Keys returns every stored key in ascending order.
func (f *File) Keys() ([]string, error) {
	docs, err := f.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *File) replace(b []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.Path, err)
	}
	return nil
}

// encode writes indented JSON without escaping HTML characters, so Chinese
// names and notes stay readable in the file.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
