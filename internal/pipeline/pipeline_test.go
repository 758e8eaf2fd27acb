package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gramvault/gramvault/internal/instagram"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/store"
)

type fakeProvider struct {
	profile     *model.ProfileData
	profileErr  error
	items       []instagram.MediaItem
	listErr     error
	downloadErr error
}

func (f *fakeProvider) FetchProfile(context.Context, string) (*model.ProfileData, error) {
	return f.profile, f.profileErr
}

func (f *fakeProvider) ListMedia(_ context.Context, _ string, contentType model.ContentType) ([]instagram.MediaItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if contentType == model.ContentAll {
		return f.items, nil
	}
	var filtered []instagram.MediaItem
	for _, item := range f.items {
		if string(item.Kind)+"s" == string(contentType) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func (f *fakeProvider) DownloadMedia(_ context.Context, items []instagram.MediaItem, _ model.Quality, destDir string) ([]string, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	paths := make([]string, 0, len(items))
	for _, item := range items {
		path := filepath.Join(destDir, string(item.Kind)+"s", item.Filename)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte("media"), 0o600); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type fakeArchiver struct {
	root       string
	buildErr   error
	built      []string
	cleaned    []string
	tempDirErr error
}

func (f *fakeArchiver) WorkDir() string { return f.root }

func (f *fakeArchiver) TempDir() (string, error) {
	if f.tempDirErr != nil {
		return "", f.tempDirErr
	}
	return os.MkdirTemp(f.root, "stage-*")
}

func (f *fakeArchiver) Build(sourceDir, outputPath string) error {
	if f.buildErr != nil {
		return f.buildErr
	}
	f.built = append(f.built, outputPath)
	return os.WriteFile(outputPath, []byte("zip"), 0o600)
}

func (f *fakeArchiver) Cleanup(dir string) {
	f.cleaned = append(f.cleaned, dir)
	os.RemoveAll(dir)
}

// recordingStore wraps a Store and captures every progress value written, in
// order.
type recordingStore struct {
	store.Store
	progress []int
}

func (r *recordingStore) Update(ctx context.Context, id string, patch store.Patch) (*model.Session, bool) {
	if patch.Progress != nil {
		r.progress = append(r.progress, *patch.Progress)
	}
	return r.Store.Update(ctx, id, patch)
}

func sampleItems() []instagram.MediaItem {
	return []instagram.MediaItem{
		{ID: "1", Kind: instagram.KindImage, Filename: "1.jpg"},
		{ID: "2", Kind: instagram.KindImage, Filename: "2.jpg"},
		{ID: "3", Kind: instagram.KindVideo, Filename: "3.mp4"},
	}
}

func newRunner(t *testing.T, provider *fakeProvider) (*Runner, *recordingStore, *fakeArchiver) {
	t.Helper()
	recorder := &recordingStore{Store: store.NewMemoryStore(time.Hour)}
	archiver := &fakeArchiver{root: t.TempDir()}
	return &Runner{Store: recorder, Provider: provider, Archiver: archiver}, recorder, archiver
}

func createSession(t *testing.T, s store.Store, contentType model.ContentType) *model.Session {
	t.Helper()
	req := model.CreateRequest{SourceURL: "https://instagram.com/alice", ContentType: contentType}
	if err := req.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	session, err := s.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return session
}

func TestRunCompletes(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		profile: &model.ProfileData{Username: "alice", DisplayName: "Alice"},
		items:   sampleItems(),
	}
	runner, recorder, archiver := newRunner(t, provider)
	session := createSession(t, recorder, model.ContentAll)

	if err := runner.Run(ctx, session.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, ok := recorder.Get(ctx, session.ID)
	if !ok {
		t.Fatalf("session disappeared")
	}
	if got.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.Progress != 100 {
		t.Fatalf("progress = %d, want 100", got.Progress)
	}
	if got.ProfileData == nil || got.ProfileData.Username != "alice" {
		t.Fatalf("profile data not stored")
	}
	stats := got.MediaStats
	if stats == nil {
		t.Fatalf("media stats not stored")
	}
	if stats.Total != 3 || stats.Images != 2 || stats.Videos != 1 || stats.Stories != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Total != stats.Images+stats.Videos+stats.Stories {
		t.Fatalf("stats do not add up: %+v", stats)
	}
	if got.ArchivePath == "" {
		t.Fatalf("archive path not stored")
	}
	if _, err := os.Stat(got.ArchivePath); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if len(archiver.cleaned) != 1 {
		t.Fatalf("temp dir not cleaned up: %v", archiver.cleaned)
	}
}

func TestRunProgressCheckpoints(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{profile: &model.ProfileData{Username: "alice"}, items: sampleItems()}
	runner, recorder, _ := newRunner(t, provider)
	session := createSession(t, recorder, model.ContentAll)

	if err := runner.Run(ctx, session.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []int{10, 25, 50, 80, 100}
	if len(recorder.progress) != len(want) {
		t.Fatalf("progress updates = %v, want %v", recorder.progress, want)
	}
	for i, p := range want {
		if recorder.progress[i] != p {
			t.Fatalf("progress updates = %v, want %v", recorder.progress, want)
		}
	}
}

func TestRunContentTypeFilter(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{profile: &model.ProfileData{Username: "alice"}, items: sampleItems()}
	runner, recorder, _ := newRunner(t, provider)
	session := createSession(t, recorder, model.ContentImages)

	if err := runner.Run(ctx, session.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := recorder.Get(ctx, session.ID)
	if got.MediaStats.Videos != 0 || got.MediaStats.Stories != 0 {
		t.Fatalf("filter not honored: %+v", got.MediaStats)
	}
	if got.MediaStats.Images != 2 || got.MediaStats.Total != 2 {
		t.Fatalf("stats = %+v, want 2 images", got.MediaStats)
	}
}

func TestRunProfileFetchFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{profileErr: instagram.ErrProvider}
	runner, recorder, archiver := newRunner(t, provider)
	session := createSession(t, recorder, model.ContentAll)

	if err := runner.Run(ctx, session.ID); err == nil {
		t.Fatalf("expected run to fail")
	}
	got, _ := recorder.Get(ctx, session.ID)
	if got.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.Progress != 0 {
		t.Fatalf("progress = %d, want reset to 0", got.Progress)
	}
	if len(archiver.built) != 0 {
		t.Fatalf("archive built despite early failure")
	}
}

func TestRunArchiveFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{profile: &model.ProfileData{Username: "alice"}, items: sampleItems()}
	runner, recorder, archiver := newRunner(t, provider)
	archiver.buildErr = errors.New("disk full")
	session := createSession(t, recorder, model.ContentAll)

	if err := runner.Run(ctx, session.ID); err == nil {
		t.Fatalf("expected run to fail")
	}
	got, _ := recorder.Get(ctx, session.ID)
	if got.Status != model.StatusFailed || got.Progress != 0 {
		t.Fatalf("got %q/%d, want failed/0", got.Status, got.Progress)
	}
	if len(archiver.cleaned) != 1 {
		t.Fatalf("temp dir not cleaned after failure")
	}
}

func TestRunSweptSessionIsNoOp(t *testing.T) {
	provider := &fakeProvider{profile: &model.ProfileData{Username: "alice"}}
	runner, _, _ := newRunner(t, provider)
	if err := runner.Run(context.Background(), "already-swept"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}
