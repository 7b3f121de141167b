// Package storage reads a training data folder and writes model artifacts.
//
// A data folder holds domain.yml, an optional config.yml and a trackers/
// directory with one conversation per file:
//
//	sender_id: abc
//	events:
//	  - event: action
//	    name: action_listen
//	  - event: user
//	    intent: greet
package storage

import (
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/tracker"
)

// File and directory names inside a data folder.
const (
	DomainFile  = "domain.yml"
	ConfigFile  = "config.yml"
	TrackersDir = "trackers"
)

// Storage wraps a data folder.
type Storage struct {
	Folder string
}

// NewStorage creates a Storage for the given data folder.
func NewStorage(folder string) *Storage {
	return &Storage{Folder: folder}
}

// GetDomain reads domain.yml, falling back to domain.yaml.
func (s *Storage) GetDomain() (*domain.Domain, error) {
	path := filepath.Join(s.Folder, DomainFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		alt := strings.TrimSuffix(path, ".yml") + ".yaml"
		if _, err := os.Stat(alt); err == nil {
			path = alt
		}
	}
	d, err := domain.Load(path)
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

// GetConfig decodes config.yml into out. It reports false without an error
// when the folder has no config file.
func (s *Storage) GetConfig(out any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", ConfigFile, err)
	}
	return true, nil
}

type trackerFile struct {
	SenderID string           `yaml:"sender_id"`
	Events   []map[string]any `yaml:"events"`
}

// IterTrackers loads every tracker file under trackers/ in file name order.
// JSON files are read by the YAML decoder as well.
func (s *Storage) IterTrackers(opts IterOptions) ([]*tracker.DialogueStateTracker, error) {
	paths, err := s.trackerPaths()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var trackers []*tracker.DialogueStateTracker
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Cannot read tracker file", "path", path, "error", err)
				continue
			}
			return nil, fmt.Errorf("read tracker %s: %w", path, err)
		}

		// Deduplication by file content hash
		if opts.DropDuplicates {
			hash := fmt.Sprintf("%x", md5.Sum(data))
			if seen[hash] {
				slog.Debug("Skipping duplicate tracker file", "path", path)
				continue
			}
			seen[hash] = true
		}

		t, err := parseTracker(data)
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid tracker file", "path", path, "error", err)
				continue
			}
			return nil, fmt.Errorf("parse tracker %s: %w", path, err)
		}
		trackers = append(trackers, t)
	}
	slog.Debug("Loaded trackers", "folder", s.Folder, "count", len(trackers))
	return trackers, nil
}

func (s *Storage) trackerPaths() ([]string, error) {
	dir := filepath.Join(s.Folder, TrackersDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yml", ".yaml", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func parseTracker(data []byte) (*tracker.DialogueStateTracker, error) {
	var tf trackerFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	events, err := tracker.ParseEvents(tf.Events)
	if err != nil {
		return nil, err
	}
	if tf.SenderID == "" {
		tf.SenderID = uuid.NewString()
	}
	return tracker.New(tf.SenderID, events), nil
}

// IterOptions controls tracker loading.
type IterOptions struct {
	DropDuplicates bool
	SkipInvalid    bool
}

// DefaultIterOptions returns the default options for loading trackers.
func DefaultIterOptions() IterOptions {
	return IterOptions{
		DropDuplicates: true,
	}
}
