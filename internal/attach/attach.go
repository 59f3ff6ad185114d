// Package attach owns the files selected for the next send and the
// locally allocated preview resources that render their thumbnails.
// Every allocated preview reaches exactly one release on every exit
// path: send success, manual removal, or pipeline teardown.
package attach

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/helpchat/internal/logger"
)

// File is a raw file selected for upload.
type File struct {
	Name string
	Mime string
	Size int64
	Data []byte
}

// IsImage reports whether the file gets a generated preview.
// Non-images render a placeholder icon and allocate nothing.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.Mime, "image/")
}

// Preview is an owned preview resource for a not-yet-uploaded file.
// Release is idempotent: success, cancel and teardown paths may all
// call it without coordination.
type Preview struct {
	id      string
	url     string
	release func()
	once    sync.Once
}

func (p *Preview) ID() string  { return p.id }
func (p *Preview) URL() string { return p.url }

// Release frees the preview resource. Calling it again is a no-op.
func (p *Preview) Release() {
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}

// NewPreview wraps an allocated resource in an owned handle.
func NewPreview(url string, release func()) *Preview {
	return &Preview{id: uuid.New().String(), url: url, release: release}
}

// Allocator creates preview resources for image files.
// Implementations must return a release callback that frees the
// resource; the pipeline guarantees it is invoked exactly once.
type Allocator interface {
	Allocate(f File) (url string, release func(), err error)
}

// Handle pairs a selected file with its preview resource.
// Preview is nil for non-image files.
type Handle struct {
	ID      string
	File    File
	Preview *Preview
}

// Pipeline holds the pending attachment set for the compose surface.
type Pipeline struct {
	mu      sync.Mutex
	alloc   Allocator
	handles []*Handle
}

func NewPipeline(alloc Allocator) *Pipeline {
	return &Pipeline{alloc: alloc}
}

// Select adds files to the pending set, allocating a preview for each
// image-like file. An allocation failure degrades to no preview; the
// file itself stays selected.
func (p *Pipeline) Select(files []File) []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	added := make([]*Handle, 0, len(files))
	for _, f := range files {
		h := &Handle{ID: uuid.New().String(), File: f}
		if f.IsImage() && p.alloc != nil {
			url, release, err := p.alloc.Allocate(f)
			if err != nil {
				logger.Errorf("attach: allocate preview for %s: %v", f.Name, err)
			} else {
				h.Preview = NewPreview(url, release)
			}
		}
		p.handles = append(p.handles, h)
		added = append(added, h)
	}
	return added
}

// Remove releases the handle's preview and drops it from the pending set.
func (p *Pipeline) Remove(handleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.handles {
		if h.ID == handleID {
			if h.Preview != nil {
				h.Preview.Release()
			}
			p.handles = append(p.handles[:i], p.handles[i+1:]...)
			return
		}
	}
}

// DropPreviews releases and detaches the preview resources of the
// given handles while the files stay selected. A failed send uses this
// so a retry never references a released resource.
func (p *Pipeline) DropPreviews(handles []*Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range handles {
		if h.Preview != nil {
			h.Preview.Release()
			h.Preview = nil
		}
	}
}

// Clear releases every outstanding preview and empties the pending set.
// Called on successful send, explicit cancel and compose teardown.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h.Preview != nil {
			h.Preview.Release()
		}
	}
	p.handles = nil
}

// Handles returns a snapshot of the pending set.
func (p *Pipeline) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Handle, len(p.handles))
	copy(out, p.handles)
	return out
}

// Files returns the raw files of the pending set, in selection order.
// These, not the preview handles, go on the wire.
func (p *Pipeline) Files() []File {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]File, 0, len(p.handles))
	for _, h := range p.handles {
		out = append(out, h.File)
	}
	return out
}

// Len reports the number of pending attachments.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}
