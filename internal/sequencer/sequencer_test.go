package sequencer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundedQuestionsStrictlyIncrease(t *testing.T) {
	s := New(Config{QuestionCount: -1, StudentCount: 50, QuestionOffset: 100, StudentOffset: 100})

	prev := -1
	seen := map[int]bool{}
	for c := uint64(0); c <= 500; c++ {
		tg := s.Next(c)
		assert.Greater(t, tg.QuestionID, prev)
		assert.False(t, seen[tg.QuestionID])
		seen[tg.QuestionID] = true
		prev = tg.QuestionID
	}
	assert.Equal(t, Target{QuestionID: 100, StudentID: 100}, s.Next(0))
}

func TestUnboundedStudentsCycle(t *testing.T) {
	s := New(Config{StudentCount: 7, StudentOffset: 81})
	for c := uint64(0); c < 70; c++ {
		assert.Equal(t, s.Next(c).StudentID, s.Next(c+7).StudentID)
		assert.GreaterOrEqual(t, s.Next(c).StudentID, 81)
		assert.Less(t, s.Next(c).StudentID, 88)
	}
}

func TestCyclicPolicy(t *testing.T) {
	s := New(Config{QuestionCount: 3, StudentCount: 2, QuestionOffset: 25, StudentOffset: 81})
	require.True(t, s.Cyclic())

	want := []Target{
		{25, 81}, {26, 81}, {27, 81},
		{25, 82}, {26, 82}, {27, 82},
		{25, 81},
	}
	for i, w := range want {
		assert.Equal(t, w, s.Next(uint64(i)), "counter %d", i)
	}
	assert.Equal(t, []int{25, 26, 27}, s.QuestionRange())
}

func TestUnboundedHasNoRange(t *testing.T) {
	assert.Nil(t, New(Config{}).QuestionRange())
}

func TestTakeIsUniqueUnderConcurrency(t *testing.T) {
	s := New(Config{StudentCount: 10})

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tg := s.Take()
				mu.Lock()
				seen[tg.QuestionID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1600)
	assert.Equal(t, uint64(1600), s.Issued())
}
