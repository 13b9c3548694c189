package stats

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
)

const labelKey = history.ReservedStatus

// ActivityBucket tallies history events per status over an inclusive day range.
// It encodes to JSON as a flat object: {"label": ..., "<status>": count, ...}.
type ActivityBucket struct {
	Label  string
	Start  time.Time
	End    time.Time
	Counts map[string]int
}

func newBucket(label string, start, end time.Time) ActivityBucket {
	return ActivityBucket{
		Label:  label,
		Start:  start,
		End:    end,
		Counts: make(map[string]int),
	}
}

// Contains reports whether the calendar day falls within [Start, End].
func (b ActivityBucket) Contains(day time.Time) bool {
	return !day.Before(b.Start) && !day.After(b.End)
}

// Total sums the counts of every status in the bucket.
func (b ActivityBucket) Total() int {
	total := 0
	for _, count := range b.Counts {
		total += count
	}
	return total
}

func (b *ActivityBucket) compact() {
	for status, count := range b.Counts {
		if count == 0 {
			delete(b.Counts, status)
		}
	}
}

// MarshalJSON writes the label first followed by statuses in lexical order.
// New events cannot use history.ReservedStatus; a stored status equal to the
// label key is still left out.
func (b ActivityBucket) MarshalJSON() ([]byte, error) {
	statuses := make([]string, 0, len(b.Counts))
	for status := range b.Counts {
		if status == labelKey {
			continue
		}
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	var buffer bytes.Buffer
	buffer.WriteByte('{')
	if err := writeField(&buffer, labelKey, b.Label); err != nil {
		return nil, err
	}
	for _, status := range statuses {
		buffer.WriteByte(',')
		if err := writeField(&buffer, status, b.Counts[status]); err != nil {
			return nil, err
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func writeField(buffer *bytes.Buffer, key string, value any) error {
	encodedKey, err := json.Marshal(key)
	if err != nil {
		return err
	}
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buffer.Write(encodedKey)
	buffer.WriteByte(':')
	buffer.Write(encodedValue)
	return nil
}
