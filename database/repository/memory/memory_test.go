package memoryRepo

import (
	"testing"

	"tourbook/database/repository"
	"tourbook/database/repository/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return NewMemoryStore()
	})
}
