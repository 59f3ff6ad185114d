package attach

import (
	"errors"
	"sync"
	"testing"
)

type trackingAllocator struct {
	mu        sync.Mutex
	allocated int
	released  int
	failNext  bool
}

func (a *trackingAllocator) Allocate(f File) (string, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNext {
		a.failNext = false
		return "", nil, errors.New("allocation failed")
	}
	a.allocated++
	return "mem://" + f.Name, func() {
		a.mu.Lock()
		a.released++
		a.mu.Unlock()
	}, nil
}

func (a *trackingAllocator) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated, a.released
}

func imageFile(name string) File {
	return File{Name: name, Mime: "image/png", Size: 3, Data: []byte{1, 2, 3}}
}

func TestPipelineSelectAllocatesForImagesOnly(t *testing.T) {
	alloc := &trackingAllocator{}
	p := NewPipeline(alloc)

	added := p.Select([]File{
		imageFile("shot.png"),
		{Name: "report.pdf", Mime: "application/pdf", Size: 9},
	})
	if len(added) != 2 {
		t.Fatalf("added = %d, want 2", len(added))
	}
	if added[0].Preview == nil {
		t.Errorf("image file got no preview")
	}
	if added[1].Preview != nil {
		t.Errorf("non-image file got a preview")
	}
	if allocated, _ := alloc.counts(); allocated != 1 {
		t.Errorf("allocations = %d, want 1", allocated)
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestPipelineAllocationFailureKeepsFile(t *testing.T) {
	alloc := &trackingAllocator{failNext: true}
	p := NewPipeline(alloc)

	added := p.Select([]File{imageFile("shot.png")})
	if len(added) != 1 {
		t.Fatalf("file dropped on preview failure")
	}
	if added[0].Preview != nil {
		t.Fatalf("preview present despite allocation failure")
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}
}

func TestPipelineRemoveReleasesPreview(t *testing.T) {
	alloc := &trackingAllocator{}
	p := NewPipeline(alloc)
	added := p.Select([]File{imageFile("shot.png")})

	p.Remove(added[0].ID)
	if _, released := alloc.counts(); released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}

	// Removing again is a no-op.
	p.Remove(added[0].ID)
	if _, released := alloc.counts(); released != 1 {
		t.Fatalf("second remove released again")
	}
}

func TestPipelineDropPreviewsKeepsFilesSelected(t *testing.T) {
	alloc := &trackingAllocator{}
	p := NewPipeline(alloc)
	p.Select([]File{imageFile("shot.png"), {Name: "report.pdf", Mime: "application/pdf"}})

	p.DropPreviews(p.Handles())
	if _, released := alloc.counts(); released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
	if p.Len() != 2 {
		t.Fatalf("Len = %d, files must stay selected", p.Len())
	}
	for _, h := range p.Handles() {
		if h.Preview != nil {
			t.Fatalf("handle %s still references a released preview", h.File.Name)
		}
	}

	// Dropping again, or clearing afterwards, must not double-release.
	p.DropPreviews(p.Handles())
	p.Clear()
	if _, released := alloc.counts(); released != 1 {
		t.Fatalf("preview released more than once")
	}
}

func TestPipelineClearReleasesEverything(t *testing.T) {
	alloc := &trackingAllocator{}
	p := NewPipeline(alloc)
	p.Select([]File{imageFile("a.png"), imageFile("b.png"), {Name: "c.txt", Mime: "text/plain"}})

	p.Clear()
	allocated, released := alloc.counts()
	if allocated != 2 || released != 2 {
		t.Fatalf("allocated=%d released=%d, want 2/2", allocated, released)
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d after clear", p.Len())
	}
}

func TestPreviewReleaseIdempotent(t *testing.T) {
	calls := 0
	pv := NewPreview("mem://x", func() { calls++ })
	pv.Release()
	pv.Release()
	pv.Release()
	if calls != 1 {
		t.Fatalf("release ran %d times, want 1", calls)
	}
	if pv.ID() == "" || pv.URL() != "mem://x" {
		t.Fatalf("preview accessors broken: id=%q url=%q", pv.ID(), pv.URL())
	}
}

func TestPipelineFilesInSelectionOrder(t *testing.T) {
	p := NewPipeline(nil)
	p.Select([]File{{Name: "one.txt"}, {Name: "two.txt"}})
	files := p.Files()
	if len(files) != 2 || files[0].Name != "one.txt" || files[1].Name != "two.txt" {
		t.Fatalf("files = %+v", files)
	}
}

func TestIsImage(t *testing.T) {
	if !(File{Mime: "image/jpeg"}).IsImage() {
		t.Errorf("image/jpeg not detected")
	}
	if (File{Mime: "application/pdf"}).IsImage() {
		t.Errorf("pdf detected as image")
	}
	if (File{}).IsImage() {
		t.Errorf("empty mime detected as image")
	}
}
