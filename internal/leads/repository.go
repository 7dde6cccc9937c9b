package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Repository defines the interface for lead record storage
type Repository interface {
	Save(ctx context.Context, record Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

func validateRecord(record Record) error {
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.Email) == "" {
		return ErrInvalidRecord
	}
	return nil
}

// InMemoryRepository is a Repository backed by a map, used for development and tests
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]Record),
	}
}

// Save stores the record, replacing any record with the same id
func (r *InMemoryRepository) Save(ctx context.Context, record Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	r.mu.Lock()
	r.records[record.ID] = record
	r.mu.Unlock()

	return nil
}

// GetByID retrieves a record by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	return &record, nil
}

// List returns records newest first.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Source != "" && rec.Source != filter.Source {
			continue
		}
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Record{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
