package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
	"github.com/MrCodeEU/facepass-liveness/pkg/storage"
)

func openStorage() (*storage.FileStorage, error) {
	fs, err := storage.NewFileStorage(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return fs, nil
}

func cmdHistory(args []string) error {
	fs, err := openStorage()
	if err != nil {
		return err
	}

	records, err := fs.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	printHistory(records)
	return nil
}

func printHistory(records []storage.SessionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tRESULT\tPROGRESS\tFRAMES\tDURATION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%d\t%v\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			outcome(r),
			r.Progress,
			r.Frames,
			r.Duration().Round(time.Millisecond),
		)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\nTotal: %d session(s)\n", len(records))
}

func outcome(r storage.SessionRecord) string {
	if r.Passed {
		return "passed"
	}
	if r.Reason != "" {
		return "failed (" + r.Reason + ")"
	}
	return "failed"
}

func cmdShow(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("session id required\nUsage: liveness show <session-id>")
	}

	fs, err := openStorage()
	if err != nil {
		return err
	}

	rec, err := fs.LoadSession(args[0])
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return fmt.Errorf("session '%s' not found", args[0])
		}
		return err
	}

	printRecord(rec)
	return nil
}

func printRecord(rec *storage.SessionRecord) {
	fmt.Fprintf(out, "Session:   %s\n", rec.ID)
	fmt.Fprintf(out, "Result:    %s\n", outcome(*rec))
	fmt.Fprintf(out, "Source:    %s\n", rec.Source)
	fmt.Fprintf(out, "Started:   %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Duration:  %v\n", rec.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "Frames:    %d\n", rec.Frames)
	fmt.Fprintf(out, "Progress:  %.1f%% (%d/%d gestures)\n", rec.Progress, rec.Completed, len(rec.Sequence))

	fmt.Fprintln(out, "Gestures:")
	for i, g := range rec.Sequence {
		mark := " "
		if i < rec.Completed {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] %s\n", mark, g)
	}

	if len(rec.Metadata) > 0 {
		keys := make([]string, 0, len(rec.Metadata))
		for k := range rec.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "Metadata:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, rec.Metadata[k])
		}
	}
}

func cmdRemove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("session id required\nUsage: liveness remove <session-id>")
	}

	fs, err := openStorage()
	if err != nil {
		return err
	}

	id := args[0]
	if !fs.SessionExists(id) {
		return fmt.Errorf("session '%s' not found", id)
	}

	if err := fs.DeleteSession(id); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	logging.WithField("session_id", id).Info("Session removed")
	fmt.Fprintf(out, "Removed session %s\n", id)
	return nil
}
