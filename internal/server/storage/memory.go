package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
)

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

type memGrant struct {
	method      string
	key         string
	contentType string
	size        int64
	expires     time.Time
}

// MemoryStore is an in-process ObjectStore. It serves its own presigned
// requests when mounted as an http.Handler under BaseURL.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]*memObject
	grants  map[string]*memGrant
	faults  map[string][]error
	baseURL string
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty store whose presigned URLs start with
// baseURL.
func NewMemoryStore(baseURL string, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		objects: map[string]*memObject{},
		grants:  map[string]*memGrant{},
		faults:  map[string][]error{},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put stores an object directly. It fails when key exists.
func (s *MemoryStore) Put(key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(key, contentType, data)
}

func (s *MemoryStore) put(key, contentType string, data []byte) error {
	if _, ok := s.objects[key]; ok {
		return fmt.Errorf("put %s: %w: object exists", key, common.ErrStorageFatal)
	}
	s.objects[key] = &memObject{data: slices.Clone(data), contentType: contentType, modified: s.now()}
	return nil
}

// InjectFault makes the next calls of op ("head", "delete", "list") fail
// with errs, one per call.
func (s *MemoryStore) InjectFault(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// Keys returns the stored keys under prefix, sorted.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func (s *MemoryStore) fault(op string) error {
	errs := s.faults[op]
	if len(errs) == 0 {
		return nil
	}
	s.faults[op] = errs[1:]
	return errs[0]
}

func (s *MemoryStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("head"); err != nil {
		return nil, err
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType, LastModified: obj.modified}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("delete"); err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	s.mu.Lock()
	if err := s.fault("list"); err != nil {
		s.mu.Unlock()
		return err
	}
	var infos []ObjectInfo
	for k, obj := range s.objects {
		if strings.HasPrefix(k, prefix) {
			infos = append(infos, ObjectInfo{Key: k, Size: int64(len(obj.data)), ContentType: obj.contentType, LastModified: obj.modified})
		}
	}
	s.mu.Unlock()

	slices.SortFunc(infos, func(a, b ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) PresignPut(_ context.Context, key, contentType string, size int64, ttl time.Duration) (*PresignedRequest, error) {
	g := &memGrant{method: http.MethodPut, key: key, contentType: contentType, size: size, expires: s.now().Add(ttl)}
	req := s.presign(g)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("If-None-Match", "*")
	return req, nil
}

func (s *MemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (*PresignedRequest, error) {
	return s.presign(&memGrant{method: http.MethodGet, key: key, expires: s.now().Add(ttl)}), nil
}

func (s *MemoryStore) presign(g *memGrant) *PresignedRequest {
	token, err := common.MakeRandHexString(16)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.grants[token] = g
	s.mu.Unlock()

	u := s.baseURL + "/" + g.key + "?" + url.Values{"token": {token}}.Encode()
	return &PresignedRequest{Method: g.method, URL: u, Header: http.Header{}, ExpiresAt: g.expires}
}

// ServeHTTP executes a presigned request. The request path is the object
// key relative to the handler mount point.
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	g, ok := s.grants[token]
	valid := ok && g.key == key && g.method == r.Method && !s.now().After(g.expires)
	if valid && g.method == http.MethodPut {
		delete(s.grants, token)
	}
	s.mu.Unlock()

	if !valid {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		obj, ok := s.objects[key]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		_, _ = w.Write(obj.data)
	case http.MethodPut:
		if r.Header.Get("Content-Type") != g.contentType || r.ContentLength != g.size {
			http.Error(w, "signature does not match", http.StatusForbidden)
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, g.size+1))
		if err != nil || int64(len(data)) != g.size {
			http.Error(w, "incomplete body", http.StatusBadRequest)
			return
		}
		if err := s.Put(key, g.contentType, data); err != nil {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

var _ ObjectStore = (*MemoryStore)(nil)
