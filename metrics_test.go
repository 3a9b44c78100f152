package latsieve

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	m := &BasicMetricsCollector{}
	m.RecordCollision()
	m.RecordScalarProducts(7)
	m.RecordSketchComparisons(11)
	m.RecordReduction(2, false)
	m.RecordReduction(3, true)
	m.RecordReduction(2, true)
	m.RecordInsert(4)
	m.RecordInsert(2)
	m.RecordRequeue()

	st := m.GetStats()
	assert.Equal(t, int64(1), st.Collisions)
	assert.Equal(t, int64(7), st.ScalarProducts)
	assert.Equal(t, int64(11), st.SketchComparisons)
	assert.Equal(t, int64(2), st.Reductions2)
	assert.Equal(t, int64(1), st.Reductions3)
	assert.Equal(t, int64(2), st.LongerReductions)
	assert.Equal(t, int64(2), st.Inserts)
	assert.Equal(t, int64(1), st.Requeues)
	assert.Equal(t, int64(4), st.MaxListLen)
}

func TestBasicMetricsCollector_Concurrent(t *testing.T) {
	m := &BasicMetricsCollector{}
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordInsert(n*100 + j)
				m.RecordCollision()
			}
		}(i)
	}
	wg.Wait()

	st := m.GetStats()
	assert.Equal(t, int64(800), st.Collisions)
	assert.Equal(t, int64(899), st.MaxListLen)
}

func TestNoopMetricsCollector(t *testing.T) {
	var m MetricsCollector = NoopMetricsCollector{}
	assert.NotPanics(t, func() {
		m.RecordCollision()
		m.RecordReduction(3, true)
		m.RecordInsert(1)
	})
}
