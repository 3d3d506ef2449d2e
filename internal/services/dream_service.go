package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/knowreal/knowreal-backend/internal/models"
	"github.com/knowreal/knowreal-backend/pkg/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultStoreTimeout bounds each record store call.
const DefaultStoreTimeout = 5 * time.Second

// accepted layouts for the submitted dream date/time, most specific first
var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// DreamInput is an unvalidated create/update submission.
type DreamInput struct {
	Title           string
	Content         string
	Notes           string
	Emotions        models.Emotions
	Mood            string
	Lucidity        bool
	OccurredAt      string
	IllustrationURL string
}

// Validate normalizes the input into storable fields. An empty date means now.
func (in DreamInput) Validate(now time.Time) (models.DreamFields, error) {
	fields := models.DreamFields{
		Title:           strings.TrimSpace(in.Title),
		Content:         strings.TrimSpace(in.Content),
		Notes:           strings.TrimSpace(in.Notes),
		Emotions:        in.Emotions,
		Mood:            models.MoodNeutral,
		Lucidity:        in.Lucidity,
		IllustrationURL: strings.TrimSpace(in.IllustrationURL),
	}
	if fields.Emotions == nil {
		fields.Emotions = models.Emotions{}
	}

	if fields.Title == "" {
		return fields, utils.NewValidationError("title", "Title is required")
	}
	if fields.Content == "" {
		return fields, utils.NewValidationError("content", "Dream description is required")
	}

	if strings.TrimSpace(in.Mood) != "" {
		mood, ok := models.ParseMood(in.Mood)
		if !ok {
			return fields, utils.NewValidationError("mood", "Mood must be positive, neutral or negative")
		}
		fields.Mood = mood
	}

	occurredAt, err := parseOccurredAt(in.OccurredAt, now)
	if err != nil {
		return fields, err
	}
	fields.OccurredAt = occurredAt

	if fields.IllustrationURL != "" {
		u, err := url.Parse(fields.IllustrationURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fields, utils.NewValidationError("illustration_url", "Illustration URL must be an http(s) URL")
		}
	}
	return fields, nil
}

func parseOccurredAt(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC(), nil
	}
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, utils.NewValidationError("dream_date", "Dream date must be a valid date or date-time")
}

// ParseDreamID validates a client-supplied dream id.
func ParseDreamID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, utils.NewValidationError("id", "Invalid dream id")
	}
	return oid, nil
}

// MutationResult reports how many records an update or delete touched. Zero
// means the id did not exist or belongs to another owner; both are successes.
type MutationResult struct {
	ID       string `json:"id"`
	Affected int64  `json:"affected"`
}

// DreamService is the single entry point for reading and changing dreams.
type DreamService struct {
	store   DreamStore
	cache   ListingCache
	events  EventPublisher
	timeout time.Duration
	now     func() time.Time
}

// DreamServiceOption customizes a DreamService.
type DreamServiceOption func(*DreamService)

// WithListingCache enables listing caching.
func WithListingCache(cache ListingCache) DreamServiceOption {
	return func(s *DreamService) { s.cache = cache }
}

// WithEventPublisher enables dream change events.
func WithEventPublisher(events EventPublisher) DreamServiceOption {
	return func(s *DreamService) { s.events = events }
}

// WithStoreTimeout bounds each store call; zero disables the bound.
func WithStoreTimeout(d time.Duration) DreamServiceOption {
	return func(s *DreamService) { s.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) DreamServiceOption {
	return func(s *DreamService) { s.now = now }
}

func NewDreamService(store DreamStore, opts ...DreamServiceOption) *DreamService {
	s := &DreamService{
		store:   store,
		timeout: DefaultStoreTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DreamService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// List returns one page of identity's dreams matching params. A store
// failure fails the whole page; no partial result is returned.
func (s *DreamService) List(ctx context.Context, identity Identity, params ListParams) (*DreamPage, error) {
	q, err := ComposeDreamQuery(identity, params)
	if err != nil {
		return nil, err
	}

	// cacheGen stays -1 when the cache is off or unreachable; nothing is cached then.
	cacheGen := int64(-1)
	if s.cache != nil {
		gen, err := s.cache.Generation(ctx, identity.UserID)
		if err != nil {
			log.Printf("listing cache: generation lookup failed: %v", err)
		} else {
			if page, ok := s.cache.GetPage(ctx, identity.UserID, gen, params); ok {
				return page, nil
			}
			cacheGen = gen
		}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	dreams, total, err := s.store.Find(storeCtx, q)
	if err != nil {
		log.Printf("Error listing dreams for %s: %v", identity.UserID, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	page := newDreamPage(params, dreams, total)
	if cacheGen >= 0 {
		s.cache.SetPage(ctx, identity.UserID, cacheGen, params, page)
	}
	return page, nil
}

// Get returns a single dream owned by identity.
func (s *DreamService) Get(ctx context.Context, identity Identity, id string) (*models.Dream, error) {
	if identity.IsZero() {
		return nil, ErrUnauthenticated
	}
	oid, err := ParseDreamID(id)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	dream, err := s.store.FindOne(storeCtx, identity.UserID, oid)
	if errors.Is(err, ErrDreamNotFound) {
		return nil, err
	}
	if err != nil {
		log.Printf("Error loading dream %s: %v", id, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return dream, nil
}

// Create stores a new dream owned by identity. Invalid input never reaches the store.
func (s *DreamService) Create(ctx context.Context, identity Identity, in DreamInput) (*models.Dream, error) {
	if identity.IsZero() {
		return nil, ErrUnauthenticated
	}
	now := s.now().UTC()
	fields, err := in.Validate(now)
	if err != nil {
		return nil, err
	}

	dream := &models.Dream{
		ID:        primitive.NewObjectID(),
		OwnerID:   identity.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.Apply(dream)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.Insert(storeCtx, dream); err != nil {
		log.Printf("Error creating dream for %s: %v", identity.UserID, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.afterMutation(ctx, identity, DreamCreated, dream.ID.Hex())
	return dream, nil
}

// Update replaces every editable field of the dream id owned by identity.
func (s *DreamService) Update(ctx context.Context, identity Identity, id string, in DreamInput) (*MutationResult, error) {
	if identity.IsZero() {
		return nil, ErrUnauthenticated
	}
	oid, err := ParseDreamID(id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	fields, err := in.Validate(now)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	affected, err := s.store.Update(storeCtx, identity.UserID, oid, fields, now)
	if err != nil {
		log.Printf("Error updating dream %s: %v", id, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if affected > 0 {
		s.afterMutation(ctx, identity, DreamUpdated, oid.Hex())
	}
	return &MutationResult{ID: oid.Hex(), Affected: affected}, nil
}

// Delete removes the dream id if identity owns it.
func (s *DreamService) Delete(ctx context.Context, identity Identity, id string) (*MutationResult, error) {
	if identity.IsZero() {
		return nil, ErrUnauthenticated
	}
	oid, err := ParseDreamID(id)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	affected, err := s.store.Delete(storeCtx, identity.UserID, oid)
	if err != nil {
		log.Printf("Error deleting dream %s: %v", id, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if affected > 0 {
		s.afterMutation(ctx, identity, DreamDeleted, oid.Hex())
	}
	return &MutationResult{ID: oid.Hex(), Affected: affected}, nil
}

// afterMutation invalidates the owner's cached listing and notifies their
// open clients. Neither step can fail the mutation.
func (s *DreamService) afterMutation(ctx context.Context, identity Identity, kind DreamEventType, dreamID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, identity.UserID); err != nil {
			log.Printf("Warning: failed to invalidate dream listing cache for %s: %v", identity.UserID, err)
		}
	}
	if s.events != nil {
		event := DreamEvent{
			Type:      kind,
			DreamID:   dreamID,
			OwnerID:   identity.UserID,
			Timestamp: s.now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			log.Printf("Warning: failed to publish dream event: %v", err)
		}
	}
}
