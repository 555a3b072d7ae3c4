package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrRootNotFound is returned when the scan root does not exist.
var ErrRootNotFound = errors.New("scan root not found")

// hashBlockSize is the read block used when fingerprinting file content.
const hashBlockSize = 4096

// skipDirs are tooling directories never worth indexing, on top of the
// hidden-directory rule.
var skipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// FileInfo describes a file that survived the scan filters.
type FileInfo struct {
	Path    string // absolute path
	RelPath string // relative to the scan root, slash-separated
	Name    string
	Ext     string // extension including the dot, lowercased
	Size    int64
	Hash    string // hex SHA-256 of the file content
}

// Config bounds a scan. AllowExts, when non-empty, is a whitelist that wins
// over the deny lists. Extensions carry the leading dot.
type Config struct {
	AllowExts   []string
	DenyExts    []string
	DenyNames   []string
	MaxFiles    int
	MaxFileSize int64
	Workers     int
}

// Scan walks root, filters files per cfg, and returns them sorted by relative
// path with content fingerprints. Hashing fans out across cfg.Workers
// goroutines; unreadable files are dropped rather than failing the scan.
func Scan(ctx context.Context, root string, cfg Config) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absRoot); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, err
	}

	candidates, err := collect(ctx, absRoot, cfg)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	var (
		mu    sync.Mutex
		files []FileInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := hashFile(c.Path)
			if err != nil {
				// Permission error or a file that vanished mid-scan.
				return nil
			}
			c.Hash = hash
			mu.Lock()
			files = append(files, c)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Completion order is nondeterministic; normalize it.
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// collect walks the tree sequentially and applies all filters except hashing.
// The file-count cap is enforced during the walk so a huge tree is abandoned
// early instead of filtered at the end.
func collect(ctx context.Context, absRoot string, cfg Config) ([]FileInfo, error) {
	var (
		candidates []FileInfo
		errStop    = errors.New("stop walk")
	)

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		name := d.Name()
		if !allowed(name, cfg) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		candidates = append(candidates, FileInfo{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Name:    name,
			Ext:     strings.ToLower(filepath.Ext(name)),
			Size:    info.Size(),
		})
		if cfg.MaxFiles > 0 && len(candidates) >= cfg.MaxFiles {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return candidates, nil
}

// allowed applies the extension allow/deny policy. An explicit allow list
// wins; otherwise everything passes except denied extensions and exact
// denied filenames.
func allowed(name string, cfg Config) bool {
	ext := strings.ToLower(filepath.Ext(name))

	if len(cfg.AllowExts) > 0 {
		for _, a := range cfg.AllowExts {
			if strings.EqualFold(a, ext) {
				return true
			}
		}
		return false
	}

	for _, d := range cfg.DenyExts {
		if strings.EqualFold(d, ext) {
			return false
		}
	}
	for _, d := range cfg.DenyNames {
		if strings.EqualFold(d, name) {
			return false
		}
	}
	return true
}

// hashFile streams the file through SHA-256 in fixed-size blocks so large
// files are never held in memory.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
