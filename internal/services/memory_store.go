package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/knowreal/knowreal-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryDreamStore is an in-process DreamStore for local development
// (DREAM_STORE=memory). Records keep insertion order.
type MemoryDreamStore struct {
	mu     sync.RWMutex
	dreams []models.Dream
}

func NewMemoryDreamStore() *MemoryDreamStore {
	return &MemoryDreamStore{}
}

func (s *MemoryDreamStore) Find(ctx context.Context, q DreamQuery) ([]models.Dream, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]models.Dream, 0)
	for _, d := range s.dreams {
		if memoryMatches(q, d) {
			matched = append(matched, copyDream(d))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	total := int64(len(matched))
	start := max(q.Offset, 0)
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return matched[start:end], total, nil
}

func memoryMatches(q DreamQuery, d models.Dream) bool {
	if d.OwnerID != q.OwnerID {
		return false
	}
	if q.Search != "" {
		term := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(d.Title), term) &&
			!strings.Contains(strings.ToLower(d.Content), term) &&
			!strings.Contains(strings.ToLower(d.Notes), term) {
			return false
		}
	}
	if q.LucidOnly && !d.Lucidity {
		return false
	}
	if q.Mood.Valid() && d.Mood != q.Mood {
		return false
	}
	return true
}

func (s *MemoryDreamStore) FindOne(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Dream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(ownerID, id); i >= 0 {
		d := copyDream(s.dreams[i])
		return &d, nil
	}
	return nil, ErrDreamNotFound
}

func (s *MemoryDreamStore) Insert(ctx context.Context, dream *models.Dream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dream.ID.IsZero() {
		dream.ID = primitive.NewObjectID()
	}
	dream.Normalize()

	s.mu.Lock()
	s.dreams = append(s.dreams, copyDream(*dream))
	s.mu.Unlock()
	return nil
}

func (s *MemoryDreamStore) Update(ctx context.Context, ownerID string, id primitive.ObjectID, fields models.DreamFields, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ownerID, id)
	if i < 0 {
		return 0, nil
	}
	fields.Apply(&s.dreams[i])
	s.dreams[i].UpdatedAt = now
	s.dreams[i].Normalize()
	return 1, nil
}

func (s *MemoryDreamStore) Delete(ctx context.Context, ownerID string, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ownerID, id)
	if i < 0 {
		return 0, nil
	}
	s.dreams = append(s.dreams[:i], s.dreams[i+1:]...)
	return 1, nil
}

// indexOf must be called with mu held.
func (s *MemoryDreamStore) indexOf(ownerID string, id primitive.ObjectID) int {
	for i, d := range s.dreams {
		if d.ID == id && d.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func copyDream(d models.Dream) models.Dream {
	d.Emotions = append(models.Emotions{}, d.Emotions...)
	return d
}
