// Package results stores check-in results for the Sal client to submit.
package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"puppetcheckin/internal/logging"
	"puppetcheckin/internal/sal"
)

const (
	// DefaultPath is the results file the Sal client sends at check-in.
	DefaultPath = "/usr/local/sal/checkin_results.json"
	// Directory permissions.
	resultsDirPerm = 0o750
	// File permissions.
	resultsFilePerm = 0o600
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Store keeps the results of every check-in module in one JSON document,
// keyed by module name.
type Store struct {
	fs   afero.Fs
	log  logging.Logger
	path string
	mu   sync.Mutex
}

// New returns a Store backed by the file at path.
func New(fs afero.Fs, path string, log logging.Logger) *Store {
	return &Store{fs: fs, path: path, log: log}
}

// SetCheckinResults replaces the results for module, leaving other modules'
// results untouched.
func (s *Store) SetCheckinResults(module string, result sal.CheckinResult) error {
	start := time.Now()
	if !sal.IsValidModuleName(module) {
		return errors.Errorf("invalid module name %q", module)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("Discarding unreadable results file")
		doc = make(map[string]json.RawMessage)
	}

	encoded, err := jsonAPI.Marshal(result)
	if err != nil {
		return errors.Wrapf(err, "marshal %s results", module)
	}
	doc[module] = encoded

	data, err := jsonAPI.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal results")
	}
	if err := s.write(data); err != nil {
		return err
	}

	s.log.WithField("module", module).
		WithField("facts", len(result.Facts)).
		WithField("managed_items", len(result.ManagedItems)).
		WithField("duration", time.Since(start)).
		Info("Saved check-in results")
	return nil
}

// CheckinResults returns the stored results for module. The bool is false if
// there are none.
func (s *Store) CheckinResults(module string) (*sal.CheckinResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, false, err
	}
	raw, ok := doc[module]
	if !ok {
		return nil, false, nil
	}

	var result sal.CheckinResult
	if err := jsonAPI.Unmarshal(raw, &result); err != nil {
		return nil, false, errors.Wrapf(err, "unmarshal %s results", module)
	}
	return &result, true, nil
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := jsonAPI.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.path)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	return doc, nil
}

// write replaces the results file atomically.
func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, resultsDirPerm); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".checkin_results-*")
	if err != nil {
		return errors.Wrap(err, "create temporary results file")
	}
	tmpName := tmp.Name()
	defer func() {
		// Gone after a successful rename.
		_ = s.fs.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temporary results file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary results file")
	}
	if err := s.fs.Chmod(tmpName, resultsFilePerm); err != nil {
		return errors.Wrap(err, "chmod temporary results file")
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(err, "replace %s", s.path)
	}
	return nil
}
