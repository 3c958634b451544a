package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kbukum/captiongen/storage"
)

// workspace names the local files ffmpeg and the recognizers read. A
// file-backed store is used in place; other stores have the upload copied
// into a scratch directory that is removed when the run ends.
type workspace struct {
	upload string
	wav    string
	dir    string
}

func (p *Pipeline) openWorkspace(ctx context.Context, jobID, uploadKey, wavKey string) (*workspace, error) {
	upload, err := storage.LocalPath(p.store, uploadKey)
	switch {
	case err == nil:
		wav, err := storage.LocalPath(p.store, wavKey)
		if err != nil {
			return nil, err
		}
		return &workspace{upload: upload, wav: wav}, nil
	case !errors.Is(err, storage.ErrNoLocalPath):
		return nil, err
	}

	if p.workDir != "" {
		if err := os.MkdirAll(p.workDir, 0o750); err != nil {
			return nil, fmt.Errorf("captions: create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(p.workDir, "job-"+jobID+"-")
	if err != nil {
		return nil, fmt.Errorf("captions: create work dir: %w", err)
	}
	ws := &workspace{
		upload: filepath.Join(dir, "input"+UploadExt),
		wav:    filepath.Join(dir, "audio.wav"),
		dir:    dir,
	}
	if err := p.fetch(ctx, uploadKey, ws.upload); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return ws, nil
}

func (p *Pipeline) fetch(ctx context.Context, key, dst string) error {
	rc, err := p.store.Download(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("captions: stage %s: %w", key, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("captions: stage %s: %w", key, err)
	}
	return f.Close()
}

func (p *Pipeline) closeWorkspace(ctx context.Context, ws *workspace) {
	if ws.dir == "" {
		return
	}
	if err := os.RemoveAll(ws.dir); err != nil {
		p.log.WithContext(ctx).Warn("Work directory not removed", map[string]interface{}{
			"dir":   ws.dir,
			"error": err.Error(),
		})
	}
}
