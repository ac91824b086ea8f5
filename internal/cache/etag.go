package cache

import "sync"

// validator is the last ETag seen for a key and the body it validated.
type validator struct {
	etag string
	data any
}

// ETagTable remembers the last ETag seen per cache key together with its body. It
// lives independently of the entries in a Store, so a key whose entry has expired
// and been evicted can still be revalidated with If-None-Match and answered from
// the remembered body on a 304.
type ETagTable struct {
	mu         sync.Mutex
	validators map[string]validator
}

func NewETagTable() *ETagTable {
	return &ETagTable{validators: make(map[string]validator)}
}

// Get returns the ETag stored for key, or "".
func (t *ETagTable) Get(key string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validators[key].etag
}

// Body returns the body last validated by the ETag of key.
func (t *ETagTable) Body(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.validators[key]
	return v.data, ok
}

// Set records etag and the body it identifies for key. Empty ETags are ignored.
func (t *ETagTable) Set(key, etag string, data any) {
	if etag == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validators[key] = validator{etag: etag, data: data}
}

func (t *ETagTable) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.validators, key)
}

func (t *ETagTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validators = make(map[string]validator)
}

func (t *ETagTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.validators)
}
