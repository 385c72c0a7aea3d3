// Package transfer moves whole directory trees through a datastore.Driver,
// running one driver call per file on an adaptive worker pool.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/DrSkyle/bridgestore/internal/swarm"
	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/DrSkyle/bridgestore/pkg/filter"
	"github.com/DrSkyle/bridgestore/pkg/logging"
)

// Options controls a bulk transfer.
type Options struct {
	// Path is the logical path objects live under.
	Path string
	// Compressed selects the zstd operations.
	Compressed bool
	// Concurrency caps in-flight driver calls. Zero means 16.
	Concurrency int
	// Filter, when set, limits Pull to matching keys.
	Filter *filter.Filter
	Logger *slog.Logger
}

// Result summarizes a finished transfer.
type Result struct {
	Objects int64
	// Bytes counts wire bytes as reported by the driver.
	Bytes int64
}

func (o Options) engine() *swarm.Engine {
	limit := o.Concurrency
	if limit <= 0 {
		limit = 16
	}
	return swarm.NewEngine(swarm.Options{
		Start:     max(1, limit/2),
		Min:       1,
		Max:       limit,
		Throttled: datastore.IsThrottled,
	})
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Discard()
}

// Push uploads every regular file beneath dir. Object names are the file
// paths relative to dir, using "/" separators.
func Push(ctx context.Context, d datastore.Driver, dir string, opts Options) (Result, error) {
	log := opts.logger()
	eng := opts.engine()
	eng.Start(ctx)
	defer eng.Stop()

	var res Result
	walkErr := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		return eng.Submit(func(ctx context.Context) error {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}

			var n int
			if opts.Compressed {
				n, err = d.UploadCompressedObject(ctx, name, data, opts.Path)
			} else {
				n, err = d.UploadObject(ctx, name, string(data), opts.Path)
			}
			if err != nil {
				return err
			}

			log.Debug("Pushed object", "name", name, "bytes", n)
			atomic.AddInt64(&res.Objects, 1)
			atomic.AddInt64(&res.Bytes, int64(n))
			return nil
		})
	})

	err := eng.Wait()
	if walkErr != nil {
		err = errors.Join(fmt.Errorf("walking %s: %w", dir, walkErr), err)
	}
	return res, err
}

// Pull downloads every object under opts.Path into dir, recreating the key
// hierarchy below it.
func Pull(ctx context.Context, d datastore.Driver, dir string, opts Options) (Result, error) {
	log := opts.logger()

	keys, err := d.ListObjects(ctx, opts.Path)
	if err != nil {
		return Result{}, err
	}
	if opts.Filter != nil {
		if keys, err = opts.Filter.Apply(keys); err != nil {
			return Result{}, err
		}
	}

	eng := opts.engine()
	eng.Start(ctx)
	defer eng.Stop()

	prefix := datastore.ListPrefix(opts.Path)
	var res Result
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		target, err := localPath(dir, name)
		if err != nil {
			log.Warn("Skipping object", "key", key, "error", err)
			continue
		}

		if err := eng.Submit(func(ctx context.Context) error {
			var (
				data []byte
				n    int
				err  error
			)
			if opts.Compressed {
				data, n, err = d.FetchCompressedObject(ctx, name, opts.Path)
			} else {
				var text string
				text, err = d.FetchObject(ctx, name, opts.Path)
				data, n = []byte(text), len(text)
			}
			if err != nil {
				if key == datastore.PlaceholderKey && errors.Is(err, datastore.ErrNotFound) {
					log.Warn("Skipping placeholder entry", "key", key)
					return nil
				}
				return err
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return err
			}

			log.Debug("Pulled object", "key", key, "bytes", n)
			atomic.AddInt64(&res.Objects, 1)
			atomic.AddInt64(&res.Bytes, int64(n))
			return nil
		}); err != nil {
			return res, err
		}
	}

	return res, eng.Wait()
}

// localPath maps an object name below dir, refusing names that escape it.
func localPath(dir, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("object name %q is not a relative path", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("object name %q escapes the target directory", name)
		}
	}
	return filepath.Join(dir, filepath.FromSlash(name)), nil
}
