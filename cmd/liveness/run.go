package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrCodeEU/facepass-liveness/pkg/camera"
	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
	"github.com/MrCodeEU/facepass-liveness/pkg/notify"
	"github.com/MrCodeEU/facepass-liveness/pkg/recognition"
	"github.com/MrCodeEU/facepass-liveness/pkg/session"
	"github.com/MrCodeEU/facepass-liveness/pkg/storage"
)

// Exit codes of the run command.
const (
	exitPassed = 0
	exitFailed = 1
	exitSystem = 3
)

func cmdRun(args []string) error {
	path := cfg.Camera.Path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("source path required\nUsage: liveness run [path]")
	}

	opts := camera.Options{FPS: cfg.Camera.FPS}
	if cfg.Camera.Kind == camera.KindImages {
		detector := recognition.NewDetector(recognition.Options{
			Viewport: cfg.PreviewViewport(),
			Mirror:   cfg.Camera.Mirror,
		})
		if err := detector.LoadModels(cfg.Recognition.ModelPath); err != nil {
			return &exitError{code: exitSystem, msg: fmt.Sprintf("Error: %v\nRun 'liveness download-models' first.", err)}
		}
		defer func() { _ = detector.Close() }()
		opts.Detector = detector
	}

	source, err := camera.Open(cfg.Camera.Kind, path, opts)
	if err != nil {
		return &exitError{code: exitSystem, msg: fmt.Sprintf("Error: %v", err)}
	}
	defer func() { _ = source.Close() }()

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		logging.WithError(err).Warn("Completion signal disabled")
		notifier = notify.Nop{}
	}
	defer func() { _ = notifier.Close() }()

	var store session.Store
	if cfg.Liveness.SaveSessions {
		if err := cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}
		fs, err := storage.NewFileStorage(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		store = fs
	}

	runOpts, err := session.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	runOpts.OnUpdate = printSnapshot
	if host, err := os.Hostname(); err == nil {
		runOpts.Metadata = map[string]string{"host": host}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := session.NewRunner(source, notifier, store, runOpts).Run(ctx)
	return reportResult(result)
}

// printSnapshot renders one presentation update.
func printSnapshot(s liveness.Snapshot) {
	if s.Status != "" {
		fmt.Fprintf(out, "[%5.1f%%] %s\n", s.Progress, s.Status)
		return
	}
	fmt.Fprintf(out, "[%5.1f%%] %s %s (%d/%d)\n", s.Progress, s.Instruction, s.GesturePrompt, s.Index+1, s.Total)
}

// reportResult prints the outcome and maps it to an exit code.
func reportResult(result session.Result) error {
	if result.Passed {
		fmt.Fprintf(out, "\nSession %s passed in %v (%d frames)\n", result.SessionID, result.Duration.Round(time.Millisecond), result.Frames)
		return nil
	}

	code := exitCode(result)
	msg := fmt.Sprintf("Liveness check failed: %s", result.Reason)
	var runErr *session.RunError
	if errors.As(result.Error, &runErr) {
		msg = fmt.Sprintf("Liveness check failed: %s (%s)", runErr.Message, runErr.Code)
	}
	return &exitError{code: code, msg: msg}
}

func exitCode(result session.Result) int {
	if result.Passed {
		return exitPassed
	}
	var runErr *session.RunError
	if !errors.As(result.Error, &runErr) {
		return exitSystem
	}
	switch runErr.Code {
	case session.ErrCodeCamera, session.ErrCodePermissionDenied:
		return exitSystem
	default:
		return exitFailed
	}
}
