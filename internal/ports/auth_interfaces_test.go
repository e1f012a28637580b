package ports_test

import (
	"testing"

	"github.com/target/promptopt-client/internal/adapters/memory"
	"github.com/target/promptopt-client/internal/data"
	"github.com/target/promptopt-client/internal/mocks"
	authmocks "github.com/target/promptopt-client/internal/mocks/auth"
	"github.com/target/promptopt-client/internal/ports"
)

// This test only verifies that our doubles conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.AuthGateway = (*authmocks.MockAuthGateway)(nil)
	var _ ports.StateStore = (*authmocks.MemoryStateStore)(nil)
	var _ ports.StateStore = (*mocks.MockStateStore)(nil)
	var _ ports.StateStore = (*memory.StateStore)(nil)
	var _ ports.Clock = (*data.FakeClock)(nil)
	var _ ports.Clock = data.SystemClock{}
}
