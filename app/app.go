// Package app assembles the caption service from its parts. New registers
// the infrastructure components; Serve adds the HTTP surface and the
// janitor, Transcribe runs a single file through the same pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/captiongen/api"
	"github.com/kbukum/captiongen/audio"
	"github.com/kbukum/captiongen/bootstrap"
	"github.com/kbukum/captiongen/captions"
	"github.com/kbukum/captiongen/component"
	"github.com/kbukum/captiongen/database"
	"github.com/kbukum/captiongen/jobs"
	"github.com/kbukum/captiongen/llm"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/observability"
	"github.com/kbukum/captiongen/provider"
	"github.com/kbukum/captiongen/server"
	"github.com/kbukum/captiongen/server/middleware"
	"github.com/kbukum/captiongen/storage"
	"github.com/kbukum/captiongen/transcription"
	"github.com/kbukum/captiongen/transcription/vosk"
	"github.com/kbukum/captiongen/transcription/whisper"
	"github.com/kbukum/captiongen/transliterate"
	"github.com/kbukum/captiongen/util"

	// Registers the "local" and "s3" storage backends and the "openai" LLM
	// dialect.
	_ "github.com/kbukum/captiongen/llm/openai"
	_ "github.com/kbukum/captiongen/storage/local"
	_ "github.com/kbukum/captiongen/storage/s3"
)

// workDir is the scratch directory under the storage base path used when
// the backend has no local files.
const workDir = ".work"

// Service is the caption service on top of the bootstrap lifecycle.
type Service struct {
	*bootstrap.App[*Config]

	storage   *storage.Component
	database  *database.Component
	telemetry *observability.Component

	converter captions.Converter
	jobs      *jobs.Store
	pipeline  *captions.Pipeline
	server    *server.ServerComponent
}

// New validates cfg and registers the infrastructure components. Nothing
// starts until Serve or Transcribe.
func New(cfg *Config, opts ...bootstrap.Option) (*Service, error) {
	a, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	s := &Service{App: a}
	s.telemetry = observability.NewComponent(cfg.Tracing, observability.ServiceInfo{
		Name:        cfg.Name,
		Version:     a.Version,
		Environment: cfg.Environment,
	}, a.Logger)
	s.storage = storage.NewComponent(cfg.Storage, a.Logger)
	s.database = database.NewComponent(cfg.Jobs, a.Logger).WithAutoMigrate(&jobs.Job{})

	for _, c := range []component.Component{s.telemetry, s.storage, s.database} {
		if err := a.RegisterComponent(c); err != nil {
			return nil, err
		}
	}
	a.OnConfigure(s.configurePipeline)
	return s, nil
}

// Pipeline returns the caption pipeline, or nil before startup.
func (s *Service) Pipeline() *captions.Pipeline { return s.pipeline }

// Server returns the HTTP server, or nil unless serving.
func (s *Service) Server() *server.Server {
	if s.server == nil {
		return nil
	}
	return s.server.Server()
}

// Serve runs the HTTP service until SIGINT, SIGTERM or ctx cancellation.
func (s *Service) Serve(ctx context.Context) error {
	s.OnConfigure(s.configureHTTP)
	return s.Run(ctx)
}

// Transcribe runs one MP3 file through the pipeline and returns the result.
func (s *Service) Transcribe(ctx context.Context, path string, transliterate bool) (*captions.Result, error) {
	var res *captions.Result
	err := s.RunTask(ctx, func(ctx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		res, err = s.pipeline.Generate(ctx, captions.Input{
			Filename:      filepath.Base(path),
			Body:          f,
			Transliterate: transliterate,
		})
		return err
	})
	return res, err
}

// configurePipeline runs the startup checks and builds the pipeline on the
// started infrastructure.
func (s *Service) configurePipeline(ctx context.Context, a *bootstrap.App[*Config]) error {
	cfg, log := a.Cfg, a.Logger

	conv := s.converter
	if conv == nil {
		ffmpeg := audio.NewConverter(cfg.Audio, log)
		if err := ffmpeg.Available(); err != nil {
			return fmt.Errorf("ffmpeg %q not found: %w", cfg.Audio.FFmpegPath, err)
		}
		conv = ffmpeg
		if err := a.RegisterComponent(NewDependency("ffmpeg", cfg.Audio.FFmpegPath,
			func(context.Context) error { return ffmpeg.Available() })); err != nil {
			return err
		}
	}

	recognizers, err := s.recognizers(ctx, cfg.Recognizer, log)
	if err != nil {
		return err
	}

	rewriter, err := s.rewriter(cfg, log)
	if err != nil {
		return err
	}

	s.jobs = jobs.NewStore(s.database.DB(), log)
	s.pipeline, err = captions.New(captions.Options{
		Config:      cfg.Pipeline,
		Audio:       cfg.Audio,
		Language:    cfg.Recognizer.Language,
		UploadLimit: cfg.Storage.MaxFileSize,
		WorkDir:     filepath.Join(cfg.Storage.BasePath, workDir),
		Storage:     s.storage.Storage(),
		Converter:   conv,
		Recognizers: recognizers,
		Rewriter:    rewriter,
		Jobs:        s.jobs,
		Metrics:     s.telemetry.Metrics(),
		Logger:      log,
	})
	return err
}

// recognizers builds the recognizer manager and checks reachability. An
// unreachable recognizer is fatal only with require_on_startup.
func (s *Service) recognizers(ctx context.Context, cfg RecognizerConfig, log *logger.Logger) (*provider.Manager[transcription.Recognizer], error) {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(vosk.ProviderName, vosk.Factory(cfg.Vosk, log))
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory(cfg.Whisper, log))
	mgr, err := transcription.NewManager(reg, cfg.Config, log)
	if err != nil {
		return nil, err
	}

	probe := func(ctx context.Context) error {
		rec, err := mgr.Get(ctx)
		if err != nil {
			return err
		}
		if !rec.IsAvailable(ctx) {
			return fmt.Errorf("%s recognizer is unreachable", rec.Name())
		}
		return nil
	}
	dep := NewDependency("recognizer", recognizerDetails(cfg), probe)
	if h := dep.Health(ctx); h.Status != component.StatusHealthy {
		if cfg.RequireOnStartup {
			return nil, errors.New(h.Message)
		}
		log.Warn("Recognizer not reachable, requests will fail until it is", map[string]interface{}{
			"provider": cfg.Provider,
			"error":    h.Message,
		})
	}
	return mgr, s.RegisterComponent(dep)
}

func recognizerDetails(cfg RecognizerConfig) string {
	url := func(name string) string {
		if name == whisper.ProviderName {
			return cfg.Whisper.URL
		}
		return cfg.Vosk.URL
	}
	details := cfg.Provider + " " + url(cfg.Provider)
	if cfg.Fallback != "" {
		details += ", fallback " + cfg.Fallback + " " + url(cfg.Fallback)
	}
	return details
}

// rewriter builds the transliteration step. The language model is only
// created when transliteration is enabled.
func (s *Service) rewriter(cfg *Config, log *logger.Logger) (*transliterate.Service, error) {
	if !cfg.Transliteration.Enabled {
		return transliterate.New(cfg.Transliteration, nil, log)
	}
	model, err := llm.New(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	dep := NewDependency("llm", model.Name()+" "+model.Model(), func(ctx context.Context) error {
		if !model.IsAvailable(ctx) {
			return errors.New("language model endpoint is unreachable")
		}
		return nil
	}).Optional()
	if err := s.RegisterComponent(dep); err != nil {
		return nil, err
	}
	log.Info("Transliteration enabled", map[string]interface{}{
		"base_url": cfg.LLM.BaseURL,
		"model":    model.Model(),
		"api_key":  util.MaskSecret(cfg.LLM.APIKey, 4),
	})
	return transliterate.New(cfg.Transliteration, model, log)
}

// configureHTTP registers the janitor and the HTTP server.
func (s *Service) configureHTTP(_ context.Context, a *bootstrap.App[*Config]) error {
	cfg, log := a.Cfg, a.Logger

	janitor := captions.NewJanitor(s.pipeline.Config(), s.storage.Storage(), s.jobs, log)
	if err := a.RegisterComponent(janitor); err != nil {
		return err
	}

	srv, err := server.New(cfg.Server, log)
	if err != nil {
		return err
	}
	srv.ApplyDefaults(cfg.Name, s.telemetry.Metrics(), a.Components.HealthAll)

	limit := middleware.NewRateLimiter(cfg.Server.RateLimit).Handler()
	api.NewHandler(api.Options{
		Generator: s.pipeline,
		Jobs:      s.jobs,
		Storage:   s.storage.Storage(),
		BodyLimit: srv.BodyLimit(),
		Logger:    log,
	}).Register(srv.GinEngine(), limit)

	s.server = server.NewComponent(srv)
	return a.RegisterComponent(s.server)
}
