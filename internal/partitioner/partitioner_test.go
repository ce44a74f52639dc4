package partitioner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssign_StableAndInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		channel := Assign(key, 4)
		assert.GreaterOrEqual(t, channel, 0)
		assert.Less(t, channel, 4)
		assert.Equal(t, channel, Assign(key, 4), "same key must map to the same channel")
		assert.Equal(t, channel, AssignString(string(key), 4))
	}
}

func TestAssign_SpreadsKeys(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		seen[Assign([]byte(fmt.Sprintf("key-%d", i)), 8)] = true
	}
	assert.Greater(t, len(seen), 1, "keys should not all collapse onto one channel")
}
