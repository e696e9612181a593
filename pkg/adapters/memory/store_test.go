package memory_test

import (
	"testing"

	"github.com/omnihelp/switchboard/pkg/adapters/memory"
	"github.com/omnihelp/switchboard/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, memory.NewStore())
}
