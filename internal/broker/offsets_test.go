package broker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookwire/internal/consumer"
)

func TestCommittable(t *testing.T) {
	rec := func(partition int, offset int64) consumer.Record {
		return consumer.Record{
			ID:        fmt.Sprintf("%d-%d", partition, offset),
			Partition: partition,
			Offset:    offset,
		}
	}

	t.Run("everything commits when nothing failed routing", func(t *testing.T) {
		processed := []consumer.Record{rec(0, 4), rec(0, 5), rec(1, 9)}
		done, held := Committable(processed, nil)
		assert.Equal(t, processed, done)
		assert.Empty(t, held)
	})

	t.Run("holds offsets at and past an unrouted failure", func(t *testing.T) {
		processed := []consumer.Record{rec(0, 4), rec(0, 6)}
		done, held := Committable(processed, []consumer.Record{rec(0, 5)})
		assert.Equal(t, []consumer.Record{rec(0, 4)}, done)
		assert.Equal(t, []consumer.Record{rec(0, 6)}, held)
	})

	t.Run("other partitions are unaffected", func(t *testing.T) {
		processed := []consumer.Record{rec(0, 6), rec(1, 2), rec(1, 3)}
		done, held := Committable(processed, []consumer.Record{rec(0, 5)})
		assert.Equal(t, []consumer.Record{rec(1, 2), rec(1, 3)}, done)
		assert.Equal(t, []consumer.Record{rec(0, 6)}, held)
	})

	t.Run("lowest failed offset wins per partition", func(t *testing.T) {
		processed := []consumer.Record{rec(0, 3), rec(0, 8)}
		done, held := Committable(processed, []consumer.Record{rec(0, 7), rec(0, 4)})
		assert.Equal(t, []consumer.Record{rec(0, 3)}, done)
		assert.Equal(t, []consumer.Record{rec(0, 8)}, held)
	})
}
