// Package history keeps an append-only log of resolution events for
// diagnostics and the `tiergate history` command.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

// Trigger identifies what started a resolution pass.
type Trigger string

const (
	TriggerResolve      Trigger = "resolve"
	TriggerForce        Trigger = "force"
	TriggerFastPath     Trigger = "fast_path"
	TriggerRevalidation Trigger = "revalidation"
	TriggerWatch        Trigger = "watch"
	TriggerReset        Trigger = "reset"
)

// Entry is a single resolution event.
type Entry struct {
	EventID    string              `json:"event_id"`
	Timestamp  time.Time           `json:"timestamp"`
	Trigger    Trigger             `json:"trigger"`
	Tier       entitlements.Tier   `json:"tier"`
	Source     entitlements.Source `json:"source"`
	Stale      bool                `json:"is_stale"`
	Error      string              `json:"error,omitempty"`
	DurationMs int64               `json:"duration_ms"`
}

// Log manages the resolution history file (JSONL, newest last).
type Log struct {
	logPath  string
	mu       sync.RWMutex
	cache    []Entry
	maxCache int
}

// DefaultLimit caps the hot cache when the caller does not configure one.
const DefaultLimit = 100

// New opens (or creates) the history log under dataDir. limit caps how many
// entries stay hot for List; zero or negative means DefaultLimit.
func New(dataDir string, limit int) (*Log, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("history data directory cannot be empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	h := &Log{
		logPath:  filepath.Join(dataDir, "resolution-history.jsonl"),
		cache:    make([]Entry, 0, limit),
		maxCache: limit,
	}

	if err := h.loadCache(); err != nil {
		log.Warn().Err(err).Msg("Failed to load resolution history cache")
	}
	return h, nil
}

// Record appends an event and returns its event ID.
func (h *Log) Record(entry Entry) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry.EventID == "" {
		entry.EventID = ulid.Make().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := h.appendToFile(entry); err != nil {
		return "", fmt.Errorf("append history entry: %w", err)
	}

	h.cache = append(h.cache, entry)
	if len(h.cache) > h.maxCache {
		h.cache = h.cache[len(h.cache)-h.maxCache:]
	}
	return entry.EventID, nil
}

// List returns the newest entries first, up to limit (0 = all cached).
func (h *Log) List(limit int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Entry, 0, len(h.cache))
	for i := len(h.cache) - 1; i >= 0; i-- {
		result = append(result, h.cache[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

func (h *Log) loadCache() error {
	file, err := os.Open(h.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	entries := make([]Entry, 0)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Warn().Err(err).Msg("Skipping unparseable history entry")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(entries) > h.maxCache {
		entries = entries[len(entries)-h.maxCache:]
	}
	h.cache = entries
	return nil
}

func (h *Log) appendToFile(entry Entry) error {
	file, err := os.OpenFile(h.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return err
	}
	return file.Sync()
}
