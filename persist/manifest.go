package persist

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const manifestFileName = "manifest.yaml"

// manifestDoc is the on-disk shape of the bucket manifest sidecar: a
// simple bucket-id -> size map, so a change to the configured default
// bucket size doesn't get silently applied to buckets already on disk.
type manifestDoc struct {
	Buckets map[uint16]int64 `yaml:"buckets"`
}

// Manifest records each bucket's configured size. It is optional: when
// absent, bucket sizes are inferred from file length on disk.
type Manifest struct {
	mu  sync.Mutex
	doc manifestDoc
}

func loadManifest(dir string) (*Manifest, error) {
	m := &Manifest{doc: manifestDoc{Buckets: make(map[uint16]int64)}}

	path := filepath.Join(dir, manifestFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &m.doc); err != nil {
		return nil, err
	}
	if m.doc.Buckets == nil {
		m.doc.Buckets = make(map[uint16]int64)
	}
	return m, nil
}

func (m *Manifest) bucketSize(id uint16) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.doc.Buckets[id]
	return size, ok
}

func (m *Manifest) setBucketSize(id uint16, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Buckets[id] = size
}

func (m *Manifest) save(dir string) error {
	m.mu.Lock()
	data, err := yaml.Marshal(m.doc)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFileName), data, 0o644)
}
