package broker

import (
	"bookwire/internal/consumer"
)

// Committable splits the processed records into those whose offsets may be
// committed and those that must be held back. Committing an offset
// acknowledges every earlier offset in the same partition, so a record at or
// past an unrouted failure would silently acknowledge that failure too; such
// records stay uncommitted until the failure's offset is served again.
func Committable(processed, unrouted []consumer.Record) (done, held []consumer.Record) {
	if len(unrouted) == 0 {
		return processed, nil
	}

	floor := make(map[int]int64, len(unrouted))
	for _, rec := range unrouted {
		if cur, ok := floor[rec.Partition]; !ok || rec.Offset < cur {
			floor[rec.Partition] = rec.Offset
		}
	}

	for _, rec := range processed {
		if f, ok := floor[rec.Partition]; ok && rec.Offset >= f {
			held = append(held, rec)
			continue
		}
		done = append(done, rec)
	}
	return done, held
}
