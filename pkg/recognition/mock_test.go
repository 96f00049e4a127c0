package recognition

import (
	"github.com/Kagami/go-face"
)

type MockFaceEngine struct {
	RecognizeFunc func(data []byte) ([]face.Face, error)
	CloseFunc     func()
}

func (m *MockFaceEngine) Recognize(data []byte) ([]face.Face, error) {
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(data)
	}
	return nil, nil
}

func (m *MockFaceEngine) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

// withEngine returns a detector whose models are "loaded" from engine.
func withEngine(opts Options, engine FaceEngine) *Detector {
	d := NewDetector(opts)
	d.factory = func(path string) (FaceEngine, error) {
		return engine, nil
	}
	_ = d.LoadModels("dummy")
	return d
}
