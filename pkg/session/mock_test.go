package session

import (
	"context"
	"io"

	"github.com/MrCodeEU/facepass-liveness/pkg/camera"
	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/notify"
	"github.com/MrCodeEU/facepass-liveness/pkg/storage"
)

// MockSource implements camera.Source for testing
type MockSource struct {
	NextFunc  func(ctx context.Context) (camera.Frame, error)
	InfoFunc  func() camera.DeviceInfo
	CloseFunc func() error
}

func (m *MockSource) Next(ctx context.Context) (camera.Frame, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx)
	}
	return camera.Frame{}, io.EOF
}

func (m *MockSource) Info() camera.DeviceInfo {
	if m.InfoFunc != nil {
		return m.InfoFunc()
	}
	return camera.DeviceInfo{Kind: camera.KindReplay, Path: "mock"}
}

func (m *MockSource) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// scriptedSource returns a source that yields one frame per entry and then io.EOF.
func scriptedSource(frames ...[]liveness.FaceMeasurement) *MockSource {
	i := 0
	return &MockSource{
		NextFunc: func(ctx context.Context) (camera.Frame, error) {
			if err := ctx.Err(); err != nil {
				return camera.Frame{}, err
			}
			if i >= len(frames) {
				return camera.Frame{}, io.EOF
			}
			f := camera.Frame{Index: i, Faces: frames[i]}
			i++
			return f, nil
		},
	}
}

// MockStore implements Store for testing
type MockStore struct {
	SaveSessionFunc func(rec storage.SessionRecord) error
	Saved           []storage.SessionRecord
}

func (m *MockStore) SaveSession(rec storage.SessionRecord) error {
	m.Saved = append(m.Saved, rec)
	if m.SaveSessionFunc != nil {
		return m.SaveSessionFunc(rec)
	}
	return nil
}

// MockNotifier implements notify.Notifier for testing
type MockNotifier struct {
	PublishFunc func(ctx context.Context, ev notify.Event) error
	Events      []notify.Event
}

func (m *MockNotifier) Publish(ctx context.Context, ev notify.Event) error {
	m.Events = append(m.Events, ev)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, ev)
	}
	return nil
}

func (m *MockNotifier) Close() error {
	return nil
}
