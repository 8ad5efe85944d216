package objectstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Store used by tests across every package that
// depends on objectstore.Store, swapping a storage interface for a fake
// backend rather than standing up a real S3 endpoint in unit tests.
type Fake struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	// FailNextHealth, when set, makes the next Health call return this
	// error once, then clears itself. Lets tests simulate a transient
	// outage.
	FailNextHealth error
}

type fakeObject struct {
	body     []byte
	modified time.Time
}

// NewFake returns an empty Fake store.
func NewFake() *Fake {
	return &Fake{objects: map[string]fakeObject{}}
}

func (f *Fake) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	f.objects[key] = fakeObject{body: cp, modified: time.Now()}
	return nil
}

func (f *Fake) PutJSON(ctx context.Context, key string, v any) error {
	body, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return f.Put(ctx, key, body, "application/json")
}

func (f *Fake) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(obj.body))
	copy(cp, obj.body)
	return cp, true, nil
}

func (f *Fake) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	body, ok, err := f.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	return true, jsonUnmarshal(body, v)
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *Fake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *Fake) DeleteMany(ctx context.Context, keys []string) (int, error) {
	n := 0
	for _, k := range keys {
		if err := f.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (f *Fake) ListObjects(_ context.Context, prefix string, max int) ([]ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ObjectInfo
	for k, obj := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, ObjectInfo{Key: k, Size: int64(len(obj.body)), Modified: obj.modified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (f *Fake) ListPrefixes(_ context.Context, prefix, delimiter string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	for k := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		idx := strings.Index(rest, delimiter)
		if idx < 0 {
			continue
		}
		seen[prefix+rest[:idx+len(delimiter)]] = true
	}
	var out []string
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) ListAndGet(ctx context.Context, prefix string, excludeKeep bool) ([]Fetched, error) {
	objs, err := f.ListObjects(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Fetched, 0, len(objs))
	for _, o := range objs {
		if excludeKeep && isKeepKey(o.Key) {
			continue
		}
		body, ok, err := f.Get(ctx, o.Key)
		if err != nil || !ok {
			continue
		}
		out = append(out, Fetched{Key: o.Key, Content: body, Size: o.Size, Modified: o.Modified})
	}
	return out, nil
}

func (f *Fake) Copy(ctx context.Context, src, dst string) error {
	body, ok, err := f.Get(ctx, src)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return f.Put(ctx, dst, body, "")
}

func (f *Fake) Health(_ context.Context) error {
	if f.FailNextHealth != nil {
		err := f.FailNextHealth
		f.FailNextHealth = nil
		return err
	}
	return nil
}

var _ Store = (*Fake)(nil)
