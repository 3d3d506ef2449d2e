package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mood is the overall feeling of a dream.
type Mood string

const (
	MoodPositive Mood = "positive"
	MoodNeutral  Mood = "neutral"
	MoodNegative Mood = "negative"
)

// ParseMood returns the mood named by s (case-insensitive, trimmed).
func ParseMood(s string) (Mood, bool) {
	switch Mood(strings.ToLower(strings.TrimSpace(s))) {
	case MoodPositive:
		return MoodPositive, true
	case MoodNeutral:
		return MoodNeutral, true
	case MoodNegative:
		return MoodNegative, true
	}
	return "", false
}

// Valid reports whether m is one of the three known moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodPositive, MoodNeutral, MoodNegative:
		return true
	}
	return false
}

// UnmarshalBSONValue treats anything that is not a known mood as neutral.
func (m *Mood) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*m = MoodNeutral
	if s, ok := (bson.RawValue{Type: t, Value: data}).StringValueOK(); ok {
		if parsed, ok := ParseMood(s); ok {
			*m = parsed
		}
	}
	return nil
}

// Emotions is the canonical in-memory shape of a dream's emotion tags.
type Emotions []string

// ParseEmotions splits a comma separated list into trimmed, non-empty tags.
func ParseEmotions(s string) Emotions {
	out := Emotions{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cleanEmotions(tags []string) Emotions {
	out := Emotions{}
	for _, tag := range tags {
		out = append(out, ParseEmotions(tag)...)
	}
	return out
}

// String joins the tags the way the edit form displays them.
func (e Emotions) String() string {
	return strings.Join(e, ", ")
}

// UnmarshalBSONValue accepts a native array, a comma-joined string or null.
func (e *Emotions) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*e = Emotions{}
		return nil
	case bsontype.String:
		*e = ParseEmotions(raw.StringValue())
		return nil
	case bsontype.Array:
		values, err := raw.Array().Values()
		if err != nil {
			return err
		}
		tags := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.StringValueOK(); ok {
				tags = append(tags, s)
			}
		}
		*e = cleanEmotions(tags)
		return nil
	}
	return fmt.Errorf("emotions: unsupported bson type %s", t)
}

// UnmarshalJSON accepts either ["a","b"] or "a, b".
func (e *Emotions) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err == nil {
		*e = cleanEmotions(tags)
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("emotions must be a string or a list of strings")
	}
	if s == nil {
		*e = Emotions{}
		return nil
	}
	*e = ParseEmotions(*s)
	return nil
}

// Dream is a single journal entry owned by one user.
type Dream struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID         string             `bson:"owner_id" json:"ownerId"`
	Title           string             `bson:"title" json:"title"`
	Content         string             `bson:"content" json:"content"`
	Notes           string             `bson:"notes,omitempty" json:"notes"`
	Emotions        Emotions           `bson:"emotions" json:"emotions"`
	Mood            Mood               `bson:"mood" json:"mood"`
	Lucidity        bool               `bson:"lucidity" json:"lucidity"`
	OccurredAt      time.Time          `bson:"occurred_at" json:"occurredAt"`
	IllustrationURL string             `bson:"illustration_url,omitempty" json:"illustrationUrl,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Normalize fills in the canonical shape for fields that were absent in storage.
func (d *Dream) Normalize() {
	if !d.Mood.Valid() {
		d.Mood = MoodNeutral
	}
	if d.Emotions == nil {
		d.Emotions = Emotions{}
	}
}

// DreamFields is the full, validated set of user-editable fields.
type DreamFields struct {
	Title           string
	Content         string
	Notes           string
	Emotions        Emotions
	Mood            Mood
	Lucidity        bool
	OccurredAt      time.Time
	IllustrationURL string
}

// Apply copies the editable fields onto d.
func (f DreamFields) Apply(d *Dream) {
	d.Title = f.Title
	d.Content = f.Content
	d.Notes = f.Notes
	d.Emotions = f.Emotions
	d.Mood = f.Mood
	d.Lucidity = f.Lucidity
	d.OccurredAt = f.OccurredAt
	d.IllustrationURL = f.IllustrationURL
}
