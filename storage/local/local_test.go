package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/captiongen/storage"
)

func newStore(t *testing.T, limit int64) *Storage {
	t.Helper()
	s, err := New(t.TempDir(), limit)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUploadDownloadDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	payload := "1\n0:00:00,000 --> 0:00:01,000\nA\n"
	n, err := s.Upload(ctx, "srt/song_2025-04-18_yt.srt", strings.NewReader(payload))
	if err != nil || n != int64(len(payload)) {
		t.Fatalf("Upload = %d, %v", n, err)
	}
	rc, err := s.Download(ctx, "srt/song_2025-04-18_yt.srt")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != payload {
		t.Errorf("content = %q", data)
	}

	info, err := s.Stat(ctx, "srt/song_2025-04-18_yt.srt")
	if err != nil || info.Size != int64(len(payload)) || info.ContentType != "application/x-subrip" && info.ContentType != "application/octet-stream" {
		t.Errorf("Stat = %+v, %v", info, err)
	}

	if err := s.Delete(ctx, "srt/song_2025-04-18_yt.srt"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "srt/song_2025-04-18_yt.srt"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, err := s.Download(ctx, "srt/song_2025-04-18_yt.srt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestUploadTooLargeLeavesNothing(t *testing.T) {
	s := newStore(t, 4)
	if _, err := s.Upload(context.Background(), "uploads/a.mp3", strings.NewReader("12345")); !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.root, "uploads"))
	if len(entries) != 0 {
		t.Errorf("left behind %v", entries)
	}
}

func TestPathRejectsEscapes(t *testing.T) {
	s := newStore(t, 0)
	for _, key := range []string{"", ".", "../etc/passwd", "a/../../b"} {
		if _, err := s.Path(key); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("Path(%q) err = %v", key, err)
		}
	}
	p, err := s.Path("/srt/x.srt")
	if err != nil || p != filepath.Join(s.root, "srt", "x.srt") {
		t.Errorf("Path = %q, %v", p, err)
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)
	for _, key := range []string{"srt/b.srt", "srt/a.srt", "uploads/x.mp3", ".captiongen.lock"} {
		if _, err := s.Upload(ctx, key, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}
	files, err := s.List(ctx, "srt/")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Key != "srt/a.srt" || files[1].Key != "srt/b.srt" {
		t.Errorf("List = %+v", files)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("dot files should be skipped, got %+v", all)
	}
}

func TestFactoryRegistered(t *testing.T) {
	st, err := storage.New(storage.Config{BasePath: t.TempDir(), MaxFileSize: "1KB"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*Storage); !ok {
		t.Errorf("got %T", st)
	}
}

func TestDeletePrunesEmptyDirectories(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)
	for _, key := range []string{"tmp/job-1/input.mp3", "tmp/job-1/audio.wav", "tmp/job-2/input.mp3"} {
		if _, err := s.Upload(ctx, key, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}

	_ = s.Delete(ctx, "tmp/job-1/input.mp3")
	if _, err := os.Stat(filepath.Join(s.root, "tmp", "job-1")); err != nil {
		t.Errorf("non-empty directory removed: %v", err)
	}
	_ = s.Delete(ctx, "tmp/job-1/audio.wav")
	if _, err := os.Stat(filepath.Join(s.root, "tmp", "job-1")); !os.IsNotExist(err) {
		t.Errorf("empty job directory kept: %v", err)
	}
	_ = s.Delete(ctx, "tmp/job-2/input.mp3")
	if _, err := os.Stat(filepath.Join(s.root, "tmp")); !os.IsNotExist(err) {
		t.Errorf("empty tmp directory kept: %v", err)
	}
	if _, err := os.Stat(s.root); err != nil {
		t.Errorf("root removed: %v", err)
	}
}
