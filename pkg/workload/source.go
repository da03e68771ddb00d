package workload

import (
	"errors"
	"io"
	"math"
	"math/rand"

	"github.com/cachesim/cachesim/pkg/models"
)

// ErrNoRecords indicates there are no question records to drive a run.
var ErrNoRecords = errors.New("no workload records")

// Source yields question records for a simulation run. Implementations
// must support rewinding via Reset so the same stream can drive several
// engine configurations.
type Source interface {
	// Next returns the next record, or io.EOF when the source is drained.
	Next() (models.Record, error)
	// Reset rewinds the source to the first record.
	Reset() error
	// Close releases resources.
	Close() error
}

// SliceSource replays an in-memory slice of records.
type SliceSource struct {
	records []models.Record
	pos     int
}

// NewSliceSource creates a SliceSource over the given records.
func NewSliceSource(records []models.Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or io.EOF when drained.
func (s *SliceSource) Next() (models.Record, error) {
	if s.pos >= len(s.records) {
		return models.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

// Reset rewinds the source to the first record.
func (s *SliceSource) Reset() error {
	s.pos = 0
	return nil
}

// Close releases resources.
func (s *SliceSource) Close() error { return nil }

// ReadAll drains src from its current position into a slice.
func ReadAll(src Source) ([]models.Record, error) {
	var records []models.Record
	for {
		rec, err := src.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// Sample draws n records with repetition using a power-law skew. Skew
// above 1 concentrates draws on records earlier in the slice, matching
// the popularity bias of real question traffic; values below 1 are
// treated as uniform. Identical seeds yield identical request streams.
func Sample(records []models.Record, n int, seed int64, skew float64) ([]models.Record, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if skew < 1 {
		skew = 1
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Record, 0, n)
	for range n {
		idx := int(math.Pow(rng.Float64(), skew) * float64(len(records)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		out = append(out, records[idx])
	}
	return out, nil
}
