package memory_test

import (
	"testing"

	"github.com/warp/budget-engine/store"
	"github.com/warp/budget-engine/store/memory"
	"github.com/warp/budget-engine/store/storetest"
)

var _ store.Store = (*memory.Store)(nil)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}
