package maprender

import "sync"

// markerState is the rendered state of one vehicle marker. The rendered
// position lags the authoritative one while an interpolation is in flight.
type markerState struct {
	latitude  float64
	longitude float64
	rotation  float64

	task *interpolationTask
}

// interpolationTask is the cancellation handle of one in-flight glide. A new
// target supersedes the task rather than queueing behind it.
type interpolationTask struct {
	cancel   chan struct{}
	stopOnce sync.Once
}

func newInterpolationTask() *interpolationTask {
	return &interpolationTask{cancel: make(chan struct{})}
}

func (t *interpolationTask) stop() {
	t.stopOnce.Do(func() {
		close(t.cancel)
	})
}

func (m *markerState) supersedeTask() *interpolationTask {
	if m.task != nil {
		m.task.stop()
	}

	m.task = newInterpolationTask()

	return m.task
}
