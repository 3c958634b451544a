package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/captiongen/database"
	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/jobs"
	"github.com/kbukum/captiongen/storage"
	"github.com/kbukum/captiongen/storage/local"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/testutil"
	"github.com/kbukum/captiongen/transcription"
)

// copyConverter "converts" by copying a prepared WAV fixture.
type copyConverter struct {
	wav     string
	err     error
	started chan struct{}
	release chan struct{}
	// input is the upload as ffmpeg would have read it.
	input string
}

func (c *copyConverter) ToWAV(ctx context.Context, src, dst string) error {
	if in, err := os.ReadFile(src); err == nil {
		c.input = string(in)
	}
	if c.started != nil {
		c.started <- struct{}{}
		<-c.release
	}
	if c.err != nil {
		return c.err
	}
	data, err := os.ReadFile(c.wav)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

type scriptedRecognizer struct {
	batches [][]subtitle.WordEvent
}

func (r *scriptedRecognizer) Name() string                     { return "scripted" }
func (r *scriptedRecognizer) IsAvailable(context.Context) bool { return true }

func (r *scriptedRecognizer) Recognize(_ context.Context, _ transcription.Request, fn transcription.BatchFunc) error {
	for i, b := range r.batches {
		if err := fn(b, i == len(r.batches)-1); err != nil {
			return err
		}
	}
	return nil
}

type staticSource struct {
	rec transcription.Recognizer
	err error
}

func (s staticSource) Get(context.Context) (transcription.Recognizer, error) { return s.rec, s.err }

type upperToLatin struct {
	mu    sync.Mutex
	calls int
}

func (u *upperToLatin) Enabled() bool { return true }

func (u *upperToLatin) Rewrite(_ context.Context, blocks []subtitle.Block) ([]subtitle.Block, error) {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	r := strings.NewReplacer("नमस्ते", "Namaste", "दोस्तों", "Doston")
	out := make([]subtitle.Block, len(blocks))
	for i, b := range blocks {
		b.Text = r.Replace(b.Text)
		out[i] = b
	}
	return out, nil
}

type fixture struct {
	store    storage.Storage
	jobs     *jobs.Store
	conv     *copyConverter
	rec      *scriptedRecognizer
	rewriter *upperToLatin
}

func speech() [][]subtitle.WordEvent {
	return [][]subtitle.WordEvent{
		{{Text: "नमस्ते", Start: 0.5, End: 0.9}},
		{{Text: "दोस्तों", Start: 1.0, End: 1.42}},
		{},
	}
}

func newFixture(t *testing.T, limit int64) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := local.New(dir+"/data", limit)
	if err != nil {
		t.Fatal(err)
	}
	db, err := database.Open(context.Background(), database.Config{Path: ":memory:", LogLevel: "silent"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(&jobs.Job{}); err != nil {
		t.Fatal(err)
	}
	return &fixture{
		store:    st,
		jobs:     jobs.NewStore(db, nil),
		conv:     &copyConverter{wav: testutil.WriteWAV(t, dir, "speech.wav", testutil.SpeechWAV(32000))},
		rec:      &scriptedRecognizer{batches: speech()},
		rewriter: &upperToLatin{},
	}
}

func (f *fixture) pipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Config:      cfg,
		Language:    "hi",
		UploadLimit: "1KB",
		Storage:     f.store,
		Converter:   f.conv,
		Recognizers: staticSource{rec: f.rec},
		Rewriter:    f.rewriter,
		Jobs:        f.jobs,
	})
	if err != nil {
		t.Fatal(err)
	}
	p.now = func() time.Time { return time.Date(2025, 4, 18, 10, 0, 0, 0, time.UTC) }
	return p
}

func (f *fixture) assertNoTempFiles(t *testing.T) {
	t.Helper()
	left, err := f.store.List(context.Background(), "tmp/")
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func appErr(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	ae, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("error %v is not an AppError", err)
	}
	return ae
}

func TestGenerateTransliterated(t *testing.T) {
	f := newFixture(t, 0)
	p := f.pipeline(t, Config{})
	ctx := context.Background()

	res, err := p.Generate(ctx, Input{Filename: "Podcast Ep1.MP3", Body: strings.NewReader("ID3 fake mp3"), Transliterate: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := "1\n0:00:00,500 --> 0:00:00,900\nNamaste\n\n2\n0:00:01,000 --> 0:00:01,420\nDoston\n"
	if res.SRT != want {
		t.Errorf("SRT =\n%q\nwant\n%q", res.SRT, want)
	}
	if res.Filename != "Podcast_Ep1_2025-04-18_yt.srt" {
		t.Errorf("filename = %q", res.Filename)
	}
	if res.OutputKey != "srt/"+res.JobID+"/"+res.Filename {
		t.Errorf("output key = %q", res.OutputKey)
	}
	if res.AudioDuration != 2*time.Second || res.Provider != "scripted" || !res.Transliterated {
		t.Errorf("result = %+v", res)
	}

	rc, err := f.store.Download(ctx, res.OutputKey)
	if err != nil {
		t.Fatalf("stored subtitle: %v", err)
	}
	stored, _ := io.ReadAll(rc)
	rc.Close()
	if string(stored) != want {
		t.Errorf("stored SRT differs: %q", stored)
	}

	job, err := f.jobs.Get(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != jobs.StatusSucceeded || job.Blocks != 2 || job.OutputKey != res.OutputKey || job.SourceFilename != "Podcast Ep1.MP3" {
		t.Errorf("job = %+v", job)
	}
	f.assertNoTempFiles(t)
}

func TestGenerateWithoutTransliteration(t *testing.T) {
	f := newFixture(t, 0)
	p := f.pipeline(t, Config{})
	res, err := p.Generate(context.Background(), Input{Filename: "a.mp3", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}
	if f.rewriter.calls != 0 || res.Transliterated {
		t.Errorf("rewriter called %d times", f.rewriter.calls)
	}
	if !strings.Contains(res.SRT, "नमस्ते") {
		t.Errorf("source text expected: %q", res.SRT)
	}
}

// remoteStore hides the local paths of a file store, like an object store.
type remoteStore struct{ storage.Storage }

func TestGenerateStagesRemoteUploads(t *testing.T) {
	f := newFixture(t, 0)
	f.store = remoteStore{f.store}
	work := t.TempDir()
	p, err := New(Options{
		Language:    "hi",
		WorkDir:     work,
		Storage:     f.store,
		Converter:   f.conv,
		Recognizers: staticSource{rec: f.rec},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Generate(context.Background(), Input{Filename: "a.mp3", Body: strings.NewReader("ID3 remote")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.conv.input != "ID3 remote" {
		t.Errorf("converter read %q", f.conv.input)
	}
	if !strings.Contains(res.SRT, "नमस्ते") {
		t.Errorf("SRT = %q", res.SRT)
	}
	left, err := os.ReadDir(work)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("work dir not cleaned: %v", left)
	}
	f.assertNoTempFiles(t)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, in *Input)
		status int
		code   apperrors.ErrorCode
		job    bool
	}{
		{
			name:   "wrong extension",
			mutate: func(_ *fixture, in *Input) { in.Filename = "clip.wav" },
			status: 400, code: apperrors.ErrCodeInvalidInput,
		},
		{
			name:   "empty upload",
			mutate: func(_ *fixture, in *Input) { in.Body = strings.NewReader("") },
			status: 400, code: apperrors.ErrCodeInvalidInput, job: true,
		},
		{
			name:   "too large",
			mutate: func(_ *fixture, in *Input) { in.Body = strings.NewReader(strings.Repeat("x", 2048)) },
			status: 413, code: apperrors.ErrCodePayloadTooLarge, job: true,
		},
		{
			name:   "undecodable audio",
			mutate: func(f *fixture, _ *Input) { f.conv.err = errors.New("ffmpeg: invalid data") },
			status: 400, code: apperrors.ErrCodeInvalidInput, job: true,
		},
		{
			name:   "no speech",
			mutate: func(f *fixture, _ *Input) { f.rec.batches = [][]subtitle.WordEvent{{}} },
			status: 422, code: apperrors.ErrCodeNoSpeech, job: true,
		},
		{
			name: "invalid word timing",
			mutate: func(f *fixture, _ *Input) {
				f.rec.batches = [][]subtitle.WordEvent{{{Text: "x", Start: 2, End: 1}}}
			},
			status: 502, code: apperrors.ErrCodeExternalService, job: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 1024)
			in := Input{Filename: "a.mp3", Body: strings.NewReader("data")}
			tc.mutate(f, &in)
			p := f.pipeline(t, Config{})

			_, err := p.Generate(context.Background(), in)
			ae := appErr(t, err)
			if ae.HTTPStatus != tc.status || ae.Code != tc.code {
				t.Fatalf("got %d %s (%v), want %d %s", ae.HTTPStatus, ae.Code, err, tc.status, tc.code)
			}

			recent, _ := f.jobs.ListRecent(context.Background(), 10)
			if !tc.job {
				if len(recent) != 0 {
					t.Errorf("no job expected, got %d", len(recent))
				}
				return
			}
			if len(recent) != 1 || recent[0].Status != jobs.StatusFailed || recent[0].Error == "" {
				t.Errorf("jobs = %+v", recent)
			}
			if ae.Details["job_id"] != recent[0].ID {
				t.Errorf("job_id detail = %v", ae.Details["job_id"])
			}
			f.assertNoTempFiles(t)
		})
	}
}

func TestGenerateRecognizerUnavailable(t *testing.T) {
	f := newFixture(t, 0)
	p, err := New(Options{
		Storage:     f.store,
		Converter:   f.conv,
		Recognizers: staticSource{err: errors.New("no provider available")},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Generate(context.Background(), Input{Filename: "a.mp3", Body: strings.NewReader("x")})
	if ae := appErr(t, err); ae.Code != apperrors.ErrCodeServiceUnavailable {
		t.Errorf("code = %s", ae.Code)
	}
}

func TestGenerateBusy(t *testing.T) {
	f := newFixture(t, 0)
	f.conv.started = make(chan struct{})
	f.conv.release = make(chan struct{})
	p := f.pipeline(t, Config{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := p.Generate(context.Background(), Input{Filename: "first.mp3", Body: strings.NewReader("x")})
		done <- err
	}()
	<-f.conv.started

	_, err := p.Generate(context.Background(), Input{Filename: "second.mp3", Body: strings.NewReader("x")})
	if ae := appErr(t, err); ae.Code != apperrors.ErrCodeBusy || ae.HTTPStatus != 503 {
		t.Errorf("second run = %v", err)
	}
	if p.InFlight() != 1 {
		t.Errorf("in flight = %d", p.InFlight())
	}

	close(f.conv.release)
	if err := <-done; err != nil {
		t.Errorf("first run: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code apperrors.ErrorCode
	}{
		{&StageError{Stage: StageTransliterate, Err: errors.New("llm down")}, apperrors.ErrCodeExternalService},
		{&StageError{Stage: StageTranscribe, Err: errors.New("ws closed")}, apperrors.ErrCodeExternalService},
		{&StageError{Stage: StageStore, Err: errors.New("disk full")}, apperrors.ErrCodeInternal},
		{fmt.Errorf("run: %w", context.DeadlineExceeded), apperrors.ErrCodeTimeout},
		{&StageError{Stage: StageTranscribe, Err: subtitle.ErrEmptySession}, apperrors.ErrCodeNoSpeech},
		{apperrors.RateLimited(), apperrors.ErrCodeRateLimited},
	}
	for _, tc := range tests {
		if got := Classify(tc.err); got.Code != tc.code {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got.Code, tc.code)
		}
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestOutputName(t *testing.T) {
	at := time.Date(2025, 4, 18, 23, 0, 0, 0, time.UTC)
	for in, want := range map[string]string{
		"song.mp3":             "song_2025-04-18_yt.srt",
		"../../etc/passwd.mp3": "passwd_2025-04-18_yt.srt",
		"भजन.mp3":              "भजन_2025-04-18_yt.srt",
		".mp3":                 "captions_2025-04-18_yt.srt",
	} {
		if got := OutputName(in, at); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
	if IsUploadName("a.wav") || !IsUploadName(" b.Mp3 ") {
		t.Error("IsUploadName")
	}
}
