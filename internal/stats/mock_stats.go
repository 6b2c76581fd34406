package stats

import "github.com/stretchr/testify/mock"

// MockStatsUpdater records metric updates so tests can assert on them.
type MockStatsUpdater struct {
	mock.Mock
}

var _ StatsProvider = (*MockStatsUpdater)(nil)

// NewMockStatsUpdater returns a mock that accepts every metric update.
func NewMockStatsUpdater() *MockStatsUpdater {
	m := &MockStatsUpdater{}
	m.On("RegisterMetric", mock.Anything).Return()
	m.On("Incr", mock.Anything).Return()
	m.On("Decr", mock.Anything).Return()
	return m
}

func (m *MockStatsUpdater) Incr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Decr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) RegisterMetric(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Run() {
	m.Called()
}

// Value is the net count recorded for name, increments minus decrements.
// Call it once the code under test has stopped updating metrics.
func (m *MockStatsUpdater) Value(name string) int {
	n := 0
	for _, call := range m.Calls {
		if len(call.Arguments) == 0 || call.Arguments.String(0) != name {
			continue
		}
		switch call.Method {
		case "Incr":
			n++
		case "Decr":
			n--
		}
	}
	return n
}
