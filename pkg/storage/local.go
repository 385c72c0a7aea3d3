package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
)

// stagingDir holds in-flight writes below the root. No key may name it.
const stagingDir = ".bridge-staging"

// LocalStore keeps each object as a file beneath Root. Keys map to relative
// paths with "/" as the directory separator.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// NewLocalStore reports ok == false when root is empty.
func NewLocalStore(root string, opts ...Option) (*LocalStore, bool) {
	if root == "" {
		return nil, false
	}
	o := buildOptions(opts)
	return &LocalStore{root: filepath.Clean(root), logger: o.logger.With("root", root)}, true
}

var _ datastore.Backend = (*LocalStore)(nil)

// Root returns the directory holding objects.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, normalizeFSError(err)
	}
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, syscall.ENOTDIR) {
		return nil, datastore.NewError(datastore.KindNotFound, "ENOTDIR", "a parent of the key is an object", err)
	}
	if err != nil {
		return nil, normalizeFSError(err)
	}
	if info.IsDir() {
		return nil, datastore.NewError(datastore.KindNotFound, "EISDIR", "key names a directory", nil)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, normalizeFSError(err)
	}
	return data, nil
}

// Put writes through a temporary file in the staging directory and renames
// it into place, so readers never observe a partial object.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return normalizeFSError(err)
	}
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return normalizeFSError(err)
	}
	staging := filepath.Join(s.root, stagingDir)
	if err := os.MkdirAll(staging, 0o700); err != nil {
		return normalizeFSError(err)
	}

	tmp, err := os.CreateTemp(staging, "put-*")
	if err != nil {
		return normalizeFSError(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return normalizeFSError(err)
	}
	if err := tmp.Close(); err != nil {
		return normalizeFSError(err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return normalizeFSError(err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return normalizeFSError(err)
	}
	return nil
}

// List walks the deepest directory implied by prefix and keeps files whose
// key starts with prefix. A missing directory is an empty listing.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := s.root
	if dir := path.Dir(prefix); prefix != "" && dir != "." {
		p, err := s.pathFor(dir)
		if err != nil {
			// No stored key can live under a directory pathFor refuses.
			return []string{}, nil
		}
		start = p
	}
	staging := filepath.Join(s.root, stagingDir)

	keys := []string{}
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
				s.logger.Debug("Listing directory does not exist", "path", p)
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p == staging {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, normalizeFSError(err)
	}

	sort.Strings(keys)
	return keys, nil
}

// pathFor maps key onto the filesystem. Keys are refused when they would
// escape root, would be rewritten by path cleaning (empty or "." segments),
// or would land in the staging directory.
func (s *LocalStore) pathFor(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", invalidKey(key)
	}
	segs := strings.Split(key, "/")
	for _, seg := range segs {
		if seg == "" || seg == "." || seg == ".." {
			return "", invalidKey(key)
		}
	}
	if segs[0] == stagingDir {
		return "", invalidKey(key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func invalidKey(key string) error {
	return datastore.NewError(datastore.KindUnknown, "InvalidKey", "key "+key+" is not a relative path", nil)
}

func normalizeFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return datastore.NewError(datastore.KindNotFound, "ENOENT", "", err)
	case errors.Is(err, fs.ErrPermission):
		return datastore.NewError(datastore.KindUnauthorized, "EACCES", "", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return datastore.NewError(datastore.KindUnreachable, "", "request abandoned", err)
	default:
		return datastore.NewError(datastore.KindUnknown, "", "", err)
	}
}
