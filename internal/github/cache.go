package github

import (
	"encoding/json"
	"os"
	"time"

	"github.com/OlegWock/surek/internal/paths"
)

// cacheEntry records the last successfully fetched commit for a stack.
type cacheEntry struct {
	Commit    string `json:"commit"`
	UpdatedAt string `json:"updated_at"`
}

func readCache(p paths.Paths) map[string]cacheEntry {
	raw, err := os.ReadFile(p.CommitCachePath())
	if err != nil {
		return map[string]cacheEntry{}
	}
	cache := map[string]cacheEntry{}
	if err := json.Unmarshal(raw, &cache); err != nil {
		return map[string]cacheEntry{}
	}
	return cache
}

// CachedCommit returns the cached commit SHA for a stack, if any.
func CachedCommit(p paths.Paths, stackName string) (string, bool) {
	entry, ok := readCache(p)[stackName]
	if !ok || entry.Commit == "" {
		return "", false
	}
	return entry.Commit, true
}

// SaveCommit records a successfully fetched commit SHA for a stack.
// Called only after a fetch succeeds, so a failed download preserves the
// prior entry.
func SaveCommit(p paths.Paths, stackName, commit string) error {
	cache := readCache(p)
	cache[stackName] = cacheEntry{
		Commit:    commit,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	encoded, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.CommitCachePath(), encoded, 0o644)
}
