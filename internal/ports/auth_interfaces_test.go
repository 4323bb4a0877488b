package ports_test

import (
	"testing"

	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/mocks"
	authmocks "github.com/target/hotelease-portal/internal/mocks/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

// Compile-time conformance of the generated mocks and in-memory fakes.
func TestDoublesImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityService = (*mocks.MockIdentityService)(nil)
	var _ ports.Directory = (*mocks.MockDirectory)(nil)

	var _ ports.AuthProvider = (*authmocks.MockAuthProvider)(nil)
	var _ ports.SessionStore = (*authmocks.MemorySessionStore)(nil)
	var _ ports.KeyValueStore = (*authmocks.MemoryKV)(nil)
	var _ ports.DirectoryAdmin = (*authmocks.MemoryDirectory)(nil)
	var _ ports.EventSink = (*eventbus.Bus)(nil)
	var _ ports.EventPublisher = (*eventbus.Bus)(nil)
}
