package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// storeIndexFile is the TOML index at the store root mapping (url, rev)
// pairs and language environments to their on-disk directories.
const storeIndexFile = "store.toml"

// storeLockFile serializes index mutation across concurrent prehook
// processes (two terminals committing at once is routine).
const storeLockFile = "store.lock"

// RepoEntry is one cached clone in the store index.
type RepoEntry struct {
	URL       string    `toml:"url"`
	Rev       string    `toml:"rev"`
	Dir       string    `toml:"dir"` // relative to the store root
	CreatedAt time.Time `toml:"created_at"`
	LastUsed  time.Time `toml:"last_used"`
}

// EnvEntry is one installed language environment in the store index.
type EnvEntry struct {
	Key       string    `toml:"key"` // repo dir + language + version + deps
	Language  string    `toml:"language"`
	Dir       string    `toml:"dir"`
	CreatedAt time.Time `toml:"created_at"`
}

// storeIndex is the persisted shape of the index file.
type storeIndex struct {
	Repos []RepoEntry `toml:"repo"`
	Envs  []EnvEntry  `toml:"env"`
}

// Store manages cached hook-repo clones and language environments
// under a single root directory.
type Store struct {
	Root         string
	CloneTimeout time.Duration
	Verbose      bool
}

// newStore creates a Store over the settings' home directory.
func newStore(s Settings) *Store {
	return &Store{
		Root:         s.Home,
		CloneTimeout: s.CloneTimeout,
	}
}

// ensureRoot creates the store layout on first use.
func (s *Store) ensureRoot() error {
	for _, sub := range []string{"repos", "envs"} {
		if err := os.MkdirAll(filepath.Join(s.Root, sub), 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	return nil
}

// loadIndex reads the index file; a missing file is an empty index.
func (s *Store) loadIndex() (*storeIndex, error) {
	var idx storeIndex
	path := filepath.Join(s.Root, storeIndexFile)
	if _, err := toml.DecodeFile(path, &idx); err != nil {
		if os.IsNotExist(err) {
			return &idx, nil
		}
		return nil, fmt.Errorf("read store index: %w", err)
	}
	return &idx, nil
}

// saveIndex writes the index atomically (temp file + rename).
func (s *Store) saveIndex(idx *storeIndex) error {
	tmp, err := os.CreateTemp(s.Root, "store-*.toml")
	if err != nil {
		return fmt.Errorf("write store index: %w", err)
	}
	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(idx); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode store index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store index: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Root, storeIndexFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store index: %w", err)
	}
	return nil
}

// withLock runs fn while holding the store lock. Acquisition uses an
// O_EXCL lock file with bounded retry; a lock older than the stale
// cutoff is assumed abandoned (crashed process) and broken.
func (s *Store) withLock(fn func() error) error {
	if err := s.ensureRoot(); err != nil {
		return err
	}
	lockPath := filepath.Join(s.Root, storeLockFile)

	const (
		retryEvery = 50 * time.Millisecond
		staleAfter = 10 * time.Minute
		waitFor    = 2 * time.Minute
	)

	deadline := time.Now().Add(waitFor)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			break
		}
		if !os.IsExist(err) {
			return fmt.Errorf("acquire store lock: %w", err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleAfter {
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("store is locked by another prehook process (remove %s if stale)", lockPath)
		}
		time.Sleep(retryEvery)
	}
	defer os.Remove(lockPath)

	return fn()
}

// CloneRepo returns the directory of a clone pinned at (url, rev),
// creating it on first use. The returned path is absolute.
func (s *Store) CloneRepo(ctx context.Context, url, rev string) (string, error) {
	var dir string
	err := s.withLock(func() error {
		idx, err := s.loadIndex()
		if err != nil {
			return err
		}

		for i := range idx.Repos {
			e := &idx.Repos[i]
			if e.URL == url && e.Rev == rev {
				abs := filepath.Join(s.Root, e.Dir)
				if _, statErr := os.Stat(abs); statErr == nil {
					e.LastUsed = time.Now().UTC()
					dir = abs
					return s.saveIndex(idx)
				}
				// Directory vanished under us; drop the entry and re-clone.
				idx.Repos = append(idx.Repos[:i], idx.Repos[i+1:]...)
				break
			}
		}

		rel := filepath.Join("repos", uuid.NewString())
		abs := filepath.Join(s.Root, rel)
		if err := s.clone(ctx, url, rev, abs); err != nil {
			os.RemoveAll(abs)
			return err
		}

		now := time.Now().UTC()
		idx.Repos = append(idx.Repos, RepoEntry{
			URL:       url,
			Rev:       rev,
			Dir:       rel,
			CreatedAt: now,
			LastUsed:  now,
		})
		dir = abs
		return s.saveIndex(idx)
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

// clone materializes url@rev into dir. Fetching the rev directly (not
// cloning a branch) handles tags and raw shas uniformly; shallow fetch
// is tried first and retried deep for servers that reject it.
func (s *Store) clone(ctx context.Context, url, rev, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, s.CloneTimeout)
	defer cancel()

	if s.Verbose {
		fmt.Fprintf(os.Stderr, "prehook: cloning %s at %s\n", url, rev)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create clone directory: %w", err)
	}
	if _, err := gitOutputContext(ctx, "", "init", "--quiet", dir); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	if _, err := gitOutputContext(ctx, dir, "remote", "add", "origin", url); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	if _, err := gitOutputContext(ctx, dir, "fetch", "--quiet", "--depth", "1", "origin", rev); err != nil {
		if _, deepErr := gitOutputContext(ctx, dir, "fetch", "--quiet", "origin", rev); deepErr != nil {
			return fmt.Errorf("fetch %s at rev %s: %w", url, rev, deepErr)
		}
	}
	if _, err := gitOutputContext(ctx, dir, "checkout", "--quiet", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s at rev %s: %w", url, rev, err)
	}
	return nil
}

// LookupEnv returns the directory of an installed language environment
// by key, or "" if none exists.
func (s *Store) LookupEnv(key string) (string, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return "", err
	}
	for _, e := range idx.Envs {
		abs := filepath.Join(s.Root, e.Dir)
		if e.Key == key {
			if _, statErr := os.Stat(abs); statErr == nil {
				return abs, nil
			}
			return "", nil
		}
	}
	return "", nil
}

// CreateEnv allocates a directory for a language environment and runs
// install to populate it. The index records the environment only after
// install succeeds, so a crashed install is invisible and retried.
func (s *Store) CreateEnv(key, language string, install func(dir string) error) (string, error) {
	var dir string
	err := s.withLock(func() error {
		idx, err := s.loadIndex()
		if err != nil {
			return err
		}
		// Re-check under the lock: another process may have won.
		for _, e := range idx.Envs {
			if e.Key == key {
				dir = filepath.Join(s.Root, e.Dir)
				return nil
			}
		}

		rel := filepath.Join("envs", uuid.NewString())
		abs := filepath.Join(s.Root, rel)
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("create env directory: %w", err)
		}
		if err := install(abs); err != nil {
			os.RemoveAll(abs)
			return err
		}

		idx.Envs = append(idx.Envs, EnvEntry{
			Key:       key,
			Language:  language,
			Dir:       rel,
			CreatedAt: time.Now().UTC(),
		})
		dir = abs
		return s.saveIndex(idx)
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

// GC removes clones not referenced by keep (a set of url@rev keys) and
// the environments installed from them. Returns the number of clones
// removed.
func (s *Store) GC(keep map[string]bool) (int, error) {
	removed := 0
	err := s.withLock(func() error {
		idx, err := s.loadIndex()
		if err != nil {
			return err
		}

		var repos []RepoEntry
		dropped := make(map[string]bool) // repo dirs being removed
		for _, e := range idx.Repos {
			if keep[repoKey(e.URL, e.Rev)] {
				repos = append(repos, e)
				continue
			}
			os.RemoveAll(filepath.Join(s.Root, e.Dir))
			dropped[e.Dir] = true
			removed++
		}

		var envs []EnvEntry
		for _, e := range idx.Envs {
			stale := false
			for d := range dropped {
				if strings.HasPrefix(e.Key, d+"|") {
					stale = true
					break
				}
			}
			if stale {
				os.RemoveAll(filepath.Join(s.Root, e.Dir))
				continue
			}
			envs = append(envs, e)
		}

		idx.Repos = repos
		idx.Envs = envs
		return s.saveIndex(idx)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Clean removes the entire store.
func (s *Store) Clean() error {
	if err := os.RemoveAll(s.Root); err != nil {
		return fmt.Errorf("remove store: %w", err)
	}
	return nil
}

// repoKey is the identity of a cached clone.
func repoKey(url, rev string) string {
	return url + "@" + rev
}
