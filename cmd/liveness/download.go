package main

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

// model is one dlib model file fetched by download-models.
type model struct {
	Name string
	URL  string
}

// Models loaded by the images source detector.
var requiredModels = []model{
	{
		Name: "shape_predictor_5_face_landmarks.dat",
		URL:  "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
	},
	{
		Name: "dlib_face_recognition_resnet_model_v1.dat",
		URL:  "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
	},
	{
		Name: "mmod_human_face_detector.dat",
		URL:  "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
	},
}

var httpClient = &http.Client{Timeout: 10 * time.Minute}

func cmdDownloadModels(args []string) error {
	modelDir := cfg.Recognition.ModelPath
	if len(args) > 0 {
		modelDir = args[0]
	}
	return downloadModels(context.Background(), modelDir, requiredModels)
}

func downloadModels(ctx context.Context, modelDir string, models []model) error {
	log := logging.Component("download").WithField("dir", modelDir)
	log.Info("Downloading models")

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for _, m := range models {
		targetPath := filepath.Join(modelDir, m.Name)
		if _, err := os.Stat(targetPath); err == nil {
			log.Infof("Model %s already exists, skipping", m.Name)
			continue
		}

		log.Infof("Downloading %s...", m.Name)
		if err := downloadAndExtract(ctx, m.URL, targetPath); err != nil {
			return fmt.Errorf("failed to download %s: %w", m.Name, err)
		}
		log.Infof("Successfully downloaded %s", m.Name)
	}

	log.Info("All models downloaded")
	return nil
}

// downloadAndExtract fetches a .bz2 file and writes the decompressed
// content to targetPath. A partial download never lands at targetPath.
func downloadAndExtract(ctx context.Context, url, targetPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpPath := targetPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, bzip2.NewReader(resp.Body)); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, targetPath)
}
