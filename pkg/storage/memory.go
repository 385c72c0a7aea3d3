package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
)

// ErrInjected is the cause attached to failures produced by FailListAfter.
var ErrInjected = errors.New("storage: injected failure")

// MemoryStore is an in-process backend. It pages its own listings like a
// remote store would, which lets tests exercise pagination.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// PageSize is the number of keys gathered per internal page.
	PageSize int

	// FailListAfter, when positive, makes List fail with KindUnreachable
	// once that many pages have been read.
	FailListAfter int

	pagesRead int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		PageSize: datastore.PageSize,
	}
}

var _ datastore.Backend = (*MemoryStore)(nil)

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, datastore.NewError(datastore.KindUnreachable, "", "request abandoned", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, datastore.NewError(datastore.KindNotFound, "NoSuchKey", "", nil)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return datastore.NewError(datastore.KindUnreachable, "", "request abandoned", err)
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.objects[key] = stored
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	size := m.PageSize
	if size <= 0 {
		size = datastore.PageSize
	}

	keys := []string{}
	pages := 0
	for start := 0; ; start += size {
		if err := ctx.Err(); err != nil {
			return nil, datastore.NewError(datastore.KindUnreachable, "", "request abandoned", err)
		}
		if m.FailListAfter > 0 && pages >= m.FailListAfter {
			return nil, datastore.NewError(datastore.KindUnreachable, "ServiceUnavailable", "", ErrInjected)
		}

		end := min(start+size, len(all))
		keys = append(keys, all[start:end]...)
		pages++
		m.pagesRead++
		if end == len(all) {
			return keys, nil
		}
	}
}

// PagesRead returns the total number of listing pages served.
func (m *MemoryStore) PagesRead() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pagesRead
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
