// Package transcription turns a speech WAV file into timed subtitle blocks.
//
// A Recognizer streams word timings in batches; Transcribe feeds every batch
// into a fresh subtitle.Session and closes it once the recognizer reports its
// final batch.
//
// # Backends
//
//   - transcription/vosk: Vosk server over a websocket
//   - transcription/whisper: faster-whisper HTTP sidecar
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(vosk.ProviderName, vosk.Factory(cfg.Vosk, log))
//	mgr, err := transcription.NewManager(reg, cfg, log)
//	rec, err := mgr.Get(ctx)
//	tr, err := transcription.Transcribe(ctx, rec, req)
package transcription
