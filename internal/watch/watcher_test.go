package watch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// trackingImporter counts creations under a lock and signals each
// handled file, so tests can wait on the debounce goroutine without
// racing it.
type trackingImporter struct {
	mu      sync.Mutex
	created int
	handled chan string
}

func (f *trackingImporter) CreateImport(ctx context.Context, programID, filename string, source models.ImportSource, payload []byte) (*models.Import, error) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	return &models.Import{ID: "imp1", ProgramID: programID, Filename: filename, Source: source, Status: models.ImportReceived}, nil
}

func (f *trackingImporter) MarkQueued(ctx context.Context, importID string) error {
	return nil
}

func (f *trackingImporter) ProcessImport(ctx context.Context, importID string) (*models.Import, error) {
	f.handled <- importID
	return &models.Import{ID: importID, Status: models.ImportCompleted}, nil
}

func (f *trackingImporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// testWatcher builds a watcher without a filesystem notifier; event
// handling and debouncing are driven directly.
func testWatcher(root string, debounce time.Duration, svc *Service) *Watcher {
	return &Watcher{
		root:     filepath.Clean(root),
		debounce: debounce,
		service:  svc,
		logger:   testLogger(),
		timers:   make(map[string]*time.Timer),
	}
}

func TestWatcher_ProgramFor(t *testing.T) {
	root := t.TempDir()
	w := testWatcher(root, time.Second, nil)

	tests := []struct {
		name        string
		path        string
		wantProgram string
		wantOK      bool
	}{
		{"file in program inbox", filepath.Join(root, "p1", "plan.xer"), "p1", true},
		{"file at drop root", filepath.Join(root, "plan.xer"), "", false},
		{"nested too deep", filepath.Join(root, "p1", "sub", "plan.xer"), "", false},
		{"hidden directory", filepath.Join(root, ".archive", "plan.xer"), "", false},
		{"outside the root", filepath.Join(filepath.Dir(root), "plan.xer"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, ok := w.programFor(tt.path)
			if ok != tt.wantOK || program != tt.wantProgram {
				t.Errorf("programFor(%q) = %q/%v, want %q/%v", tt.path, program, ok, tt.wantProgram, tt.wantOK)
			}
		})
	}
}

func TestWatcher_DebouncedEventImportsOnce(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "progA", "plan.xer")
	writeFile(t, path, "%T\tTASK\n")

	importer := &trackingImporter{handled: make(chan string, 4)}
	svc := NewService(ServiceConfig{Root: root}, importer, nil, nil, testLogger())
	w := testWatcher(root, 250*time.Millisecond, svc)

	ctx := context.Background()
	// A file being copied in produces a burst of events; only one
	// import may come out of it.
	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})

	select {
	case id := <-importer.handled:
		if id != "imp1" {
			t.Errorf("handled import = %s, want imp1", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("debounce timer never fired")
	}

	// Give a straggling second timer time to misfire before counting.
	time.Sleep(400 * time.Millisecond)
	if got := importer.count(); got != 1 {
		t.Errorf("created %d imports, want 1", got)
	}
}

func TestWatcher_IgnoresIrrelevantEvents(t *testing.T) {
	root := t.TempDir()
	xerPath := filepath.Join(root, "progA", "plan.xer")
	txtPath := filepath.Join(root, "progA", "notes.txt")
	rootPath := filepath.Join(root, "stray.xer")
	writeFile(t, xerPath, "%T\tTASK\n")
	writeFile(t, txtPath, "not a schedule")
	writeFile(t, rootPath, "no program directory")

	importer := &trackingImporter{handled: make(chan string, 4)}
	svc := NewService(ServiceConfig{Root: root}, importer, nil, nil, testLogger())
	w := testWatcher(root, 20*time.Millisecond, svc)

	ctx := context.Background()
	w.handleEvent(ctx, fsnotify.Event{Name: xerPath, Op: fsnotify.Chmod})
	w.handleEvent(ctx, fsnotify.Event{Name: xerPath, Op: fsnotify.Remove})
	w.handleEvent(ctx, fsnotify.Event{Name: txtPath, Op: fsnotify.Write})
	w.handleEvent(ctx, fsnotify.Event{Name: rootPath, Op: fsnotify.Write})

	select {
	case id := <-importer.handled:
		t.Fatalf("unexpected import %s from an ignored event", id)
	case <-time.After(300 * time.Millisecond):
	}
	if got := importer.count(); got != 0 {
		t.Errorf("created %d imports, want 0", got)
	}
}

func TestWatcher_CanceledContextSkipsImport(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "progA", "plan.xer")
	writeFile(t, path, "%T\tTASK\n")

	importer := &trackingImporter{handled: make(chan string, 4)}
	svc := NewService(ServiceConfig{Root: root}, importer, nil, nil, testLogger())
	w := testWatcher(root, 20*time.Millisecond, svc)

	ctx, cancel := context.WithCancel(context.Background())
	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
	cancel()

	select {
	case id := <-importer.handled:
		t.Fatalf("unexpected import %s after cancellation", id)
	case <-time.After(300 * time.Millisecond):
	}
	if got := importer.count(); got != 0 {
		t.Errorf("created %d imports, want 0", got)
	}
}
