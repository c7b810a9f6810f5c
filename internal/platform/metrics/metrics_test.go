package metrics

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequests(t *testing.T) {
	c := New()
	c.Record(http.StatusOK, 10*time.Millisecond)
	c.Record(http.StatusConflict, 20*time.Millisecond)
	c.Record(http.StatusInternalServerError, 30*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
	assert.Equal(t, uint64(1), snap["clientErrorsTotal"])
	assert.Equal(t, float64(20), snap["avgDurationMs"])
}

func TestTransitionsAreConcurrencySafe(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncTransition("approved")
			c.IncLeaveUsed()
		}()
	}
	wg.Wait()
	c.IncLeaveRestored()

	snap := c.Snapshot()
	assert.Equal(t, map[string]uint64{"approved": 50}, snap["transitions"])
	assert.Equal(t, uint64(50), snap["leaveUsedTotal"])
	assert.Equal(t, uint64(1), snap["leaveRestoredTotal"])
}
