package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox-operator/internal/config"
	"blackbox-operator/internal/layer"
	"blackbox-operator/internal/supervisor"
	"blackbox-operator/internal/testing/mock"
)

const (
	testContainer  = "blackbox-exporter"
	testService    = "blackbox-exporter"
	testLabel      = "blackbox_exporter"
	testConfigPath = "/etc/blackbox_exporter/config.yaml"
)

type fixture struct {
	sup     *mock.Supervisor
	store   *config.MapStore
	sink    *MemorySink
	metrics *Metrics
	rec     *SidecarReconciler
}

func newFixture(t *testing.T, modules string) *fixture {
	t.Helper()

	l, err := layer.New(layer.Params{
		ServiceName: testService,
		Binary:      "/bin/blackbox_exporter",
		ConfigPath:  testConfigPath,
	})
	require.NoError(t, err)

	f := &fixture{
		sup:     mock.NewSupervisor(),
		store:   config.NewMapStore(map[string]string{config.DefaultModulesKey: modules}),
		sink:    NewMemorySink(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.rec = NewSidecarReconciler(SidecarConfig{
		Container:        testContainer,
		Service:          testService,
		LayerLabel:       testLabel,
		ConfigPath:       testConfigPath,
		Layer:            l,
		HandleExceptions: true,
	}, f.sup, f.store, f.sink).WithMetrics(f.metrics)
	return f
}

func (f *fixture) outcomes(outcome Outcome) float64 {
	return testutil.ToFloat64(f.metrics.outcomes.WithLabelValues(string(outcome)))
}

func TestReconcileFreshContainer(t *testing.T) {
	f := newFixture(t, "http_2xx: {}")

	require.NoError(t, f.rec.ContainerReady(context.Background()))

	assert.Equal(t, []string{
		"AddLayer(" + testLabel + ")",
		"Services",
		"Push(" + testConfigPath + ")",
		"Services",
		"Start(" + testService + ")",
	}, f.sup.Methods())

	data, ok := f.sup.File(testConfigPath)
	require.True(t, ok)
	assert.Equal(t, "modules:\n  http_2xx: {}\n", string(data))
	assert.Equal(t, ActiveStatus(), f.sink.Status())
	assert.Equal(t, 1.0, f.outcomes(OutcomeActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.attempts.WithLabelValues(string(TriggerContainerReady))))
}

func TestReconcileSupervisorNotReady(t *testing.T) {
	notReady := &supervisor.NotReadyError{Container: testContainer, Err: errors.New("dial unix: no such file")}

	tests := []struct {
		name  string
		setup func(*mock.Supervisor)
	}{
		{
			name:  "add layer",
			setup: func(s *mock.Supervisor) { s.AddLayerErr = notReady },
		},
		{
			name:  "list services",
			setup: func(s *mock.Supervisor) { s.ServicesErr = notReady },
		},
		{
			name: "list services before start",
			setup: func(s *mock.Supervisor) {
				s.ServicesErr = notReady
				s.ServicesErrAfter = 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "http_2xx: {}")
			tt.setup(f.sup)
			before := f.sink.Status()

			require.NoError(t, f.rec.ConfigChanged(context.Background()))

			assert.NotContains(t, f.sup.Methods(), "Start("+testService+")")
			assert.Equal(t, before, f.sink.Status())
			assert.Equal(t, 0, f.sink.Writes())
			assert.Equal(t, 1.0, f.outcomes(OutcomeEarlyExit))
		})
	}
}

func TestReconcileNotReadyPushesNothing(t *testing.T) {
	f := newFixture(t, "http_2xx: {}")
	f.sup.AddLayerErr = &supervisor.NotReadyError{Container: testContainer}

	require.NoError(t, f.rec.ContainerReady(context.Background()))

	_, pushed := f.sup.File(testConfigPath)
	assert.False(t, pushed)
	assert.Equal(t, []string{"AddLayer(" + testLabel + ")"}, f.sup.Methods())
}

func TestReconcileInvalidModules(t *testing.T) {
	f := newFixture(t, "not: valid: yaml: at: all:")
	f.sup.SetStatus(testService, supervisor.StatusActive)

	require.NoError(t, f.rec.ConfigChanged(context.Background()))

	methods := f.sup.Methods()
	assert.Contains(t, methods, "Stop("+testService+")")
	assert.NotContains(t, methods, "Push("+testConfigPath+")")
	assert.NotContains(t, methods, "Start("+testService+")")

	status := f.sink.Status()
	assert.Equal(t, StateBlocked, status.State)
	assert.Contains(t, status.Message, "Failed to load modules config, invalid YAML?")
	assert.Equal(t, 1.0, f.outcomes(OutcomeBlocked))
}

func TestReconcileMultiDocumentModules(t *testing.T) {
	f := newFixture(t, "http_2xx:\n  prober: http\n---\ntcp_connect:\n  prober: tcp\n")

	require.NoError(t, f.rec.ContainerReady(context.Background()))

	methods := f.sup.Methods()
	assert.NotContains(t, methods, "Push("+testConfigPath+")")
	assert.NotContains(t, methods, "Start("+testService+")")

	status := f.sink.Status()
	assert.Equal(t, StateBlocked, status.State)
	assert.Contains(t, status.Message, "multiple YAML documents")
}

func TestReconcileActiveServiceIsRestarted(t *testing.T) {
	f := newFixture(t, "http_2xx:\n  prober: http\n")
	ctx := context.Background()

	require.NoError(t, f.rec.ContainerReady(ctx))
	first, _ := f.sup.File(testConfigPath)
	f.sup.Reset()

	require.NoError(t, f.rec.ConfigChanged(ctx))

	assert.Equal(t, []string{
		"AddLayer(" + testLabel + ")",
		"Services",
		"Stop(" + testService + ")",
		"Push(" + testConfigPath + ")",
		"Services",
		"Start(" + testService + ")",
	}, f.sup.Methods())

	second, _ := f.sup.File(testConfigPath)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, ActiveStatus(), f.sink.Status())
}

func TestReconcileStartFailureIsFatal(t *testing.T) {
	f := newFixture(t, "http_2xx: {}")
	require.NoError(t, f.sink.SetStatus(BlockedStatus("earlier problem")))
	f.sup.StartErr = errors.New("connection reset by peer")

	err := f.rec.ConfigChanged(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, KindFatal, stepErr.Kind)

	_, pushed := f.sup.File(testConfigPath)
	assert.True(t, pushed)
	assert.Equal(t, BlockedStatus("earlier problem"), f.sink.Status())
	assert.Equal(t, 1.0, f.outcomes(OutcomeFatal))
}

func TestReconcileAddLayerFailureIsFatal(t *testing.T) {
	f := newFixture(t, "http_2xx: {}")
	f.sup.AddLayerErr = errors.New("layer rejected")

	err := f.rec.ContainerReady(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"AddLayer(" + testLabel + ")"}, f.sup.Methods())
	assert.Equal(t, StateWaiting, f.sink.Status().State)
}

func TestReconcileBlockedFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fixture)
		wantMessage string
		notCalled   string
	}{
		{
			name: "stop fails",
			setup: func(f *fixture) {
				f.sup.SetStatus(testService, supervisor.StatusActive)
				f.sup.StopErr = errors.New("stop timed out")
			},
			wantMessage: "Failed to stop service blackbox-exporter: stop timed out",
			notCalled:   "Push(" + testConfigPath + ")",
		},
		{
			name: "push fails",
			setup: func(f *fixture) {
				f.sup.PushErr = errors.New("disk full")
			},
			wantMessage: "Failed to push config to " + testConfigPath + " on container blackbox-exporter: disk full",
			notCalled:   "Start(" + testService + ")",
		},
		{
			name: "list services fails",
			setup: func(f *fixture) {
				f.sup.ServicesErr = errors.New("permission denied")
			},
			wantMessage: "Failed to query services in container blackbox-exporter: permission denied",
			notCalled:   "Push(" + testConfigPath + ")",
		},
		{
			name: "service missing at start",
			setup: func(f *fixture) {
				f.sup.KeepServicesHidden = true
			},
			wantMessage: "Service blackbox-exporter in container blackbox-exporter is not available to start",
			notCalled:   "Start(" + testService + ")",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "http_2xx: {}")
			tt.setup(f)

			require.NoError(t, f.rec.ConfigChanged(context.Background()))

			assert.Equal(t, BlockedStatus(tt.wantMessage), f.sink.Status())
			assert.NotContains(t, f.sup.Methods(), tt.notCalled)
		})
	}
}

func TestReconcileMissingOption(t *testing.T) {
	f := newFixture(t, "")
	f.store = config.NewMapStore(nil)
	f.rec.store = f.store

	require.NoError(t, f.rec.ConfigChanged(context.Background()))

	status := f.sink.Status()
	assert.Equal(t, StateBlocked, status.State)
	assert.Contains(t, status.Message, "Failed to read modules option")
}

func TestReconcileInactiveServiceIsNotStopped(t *testing.T) {
	for _, status := range []supervisor.ServiceStatus{supervisor.StatusInactive, supervisor.StatusError} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, "http_2xx: {}")
			f.sup.SetStatus(testService, status)

			require.NoError(t, f.rec.ConfigChanged(context.Background()))

			assert.NotContains(t, f.sup.Methods(), "Stop("+testService+")")
			assert.Contains(t, f.sup.Methods(), "Start("+testService+")")
			assert.Equal(t, ActiveStatus(), f.sink.Status())
		})
	}
}

func TestReconcileEmptyModules(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.rec.ConfigChanged(context.Background()))

	data, _ := f.sup.File(testConfigPath)
	assert.Equal(t, "modules: {}\n", string(data))
	assert.Equal(t, ActiveStatus(), f.sink.Status())
}

func TestReconcileWithoutMetrics(t *testing.T) {
	f := newFixture(t, "http_2xx: {}")
	f.rec.metrics = nil

	assert.NoError(t, f.rec.ContainerReady(context.Background()))
}
