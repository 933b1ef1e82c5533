package upload

import (
	"fmt"
	"sync"
	"time"
)

// File is the metadata of a stored upload. Values are never mutated once registered.
type File struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"mimetype"`
	UploadTime   time.Time `json:"uploadTime"`
}

// Registry is the in-memory index of uploaded files.
type Registry struct {
	mu    sync.RWMutex
	files map[string]File
}

func NewRegistry() *Registry {
	return &Registry{files: make(map[string]File)}
}

func (r *Registry) Add(f File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[f.ID] = f
}

// Get returns the metadata registered under id or ErrNotFound.
func (r *Registry) Get(id string) (File, error) {
	f, ok := r.Lookup(id)
	if !ok {
		return File{}, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return f, nil
}

// Lookup returns the metadata registered under id.
func (r *Registry) Lookup(id string) (File, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	return f, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
}

func (r *Registry) List() []File {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files := make([]File, 0, len(r.files))
	for _, f := range r.files {
		files = append(files, f)
	}
	return files
}
