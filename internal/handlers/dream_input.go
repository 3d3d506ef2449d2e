package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/schema"
	"github.com/knowreal/knowreal-backend/internal/models"
	"github.com/knowreal/knowreal-backend/internal/services"
	"github.com/knowreal/knowreal-backend/pkg/utils"
)

const (
	maxFormMemory = 1 << 20
	// maxDreamBody caps any dream submission, form or JSON.
	maxDreamBody = 1 << 20
)

// dreamForm mirrors the create and edit dream HTML forms.
type dreamForm struct {
	ID              string `schema:"dream_id"`
	Title           string `schema:"title"`
	Content         string `schema:"content"`
	Notes           string `schema:"notes"`
	Emotions        string `schema:"emotions"`
	Mood            string `schema:"mood"`
	Lucidity        string `schema:"lucidity"`
	DreamDate       string `schema:"dream_date"`
	DreamDateTime   string `schema:"dream_date_time"`
	IllustrationURL string `schema:"illustration_url"`
}

// dreamRequest is the JSON body accepted by the same endpoints.
type dreamRequest struct {
	ID              string          `json:"dream_id"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	Notes           string          `json:"notes"`
	Emotions        models.Emotions `json:"emotions"`
	Mood            string          `json:"mood"`
	Lucidity        bool            `json:"lucidity"`
	DreamDate       string          `json:"dream_date"`
	DreamDateTime   string          `json:"dream_date_time"`
	IllustrationURL string          `json:"illustration_url"`
}

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// isFormRequest reports whether r carries an HTML form rather than JSON.
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// pickDate prefers the date-time field when both are sent.
func pickDate(date, dateTime string) string {
	if strings.TrimSpace(dateTime) != "" {
		return dateTime
	}
	return date
}

func checkboxOn(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// decodeDreamForm reads a urlencoded or multipart dream form. It returns the
// input and the hidden dream_id, if any.
func decodeDreamForm(r *http.Request) (services.DreamInput, string, error) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return services.DreamInput{}, "", utils.NewValidationError("form", "Invalid form submission")
	}

	var form dreamForm
	if err := formDecoder.Decode(&form, r.PostForm); err != nil {
		return services.DreamInput{}, "", utils.NewValidationError("form", "Invalid form submission")
	}

	return services.DreamInput{
		Title:           form.Title,
		Content:         form.Content,
		Notes:           form.Notes,
		Emotions:        models.ParseEmotions(form.Emotions),
		Mood:            form.Mood,
		Lucidity:        checkboxOn(form.Lucidity),
		OccurredAt:      pickDate(form.DreamDate, form.DreamDateTime),
		IllustrationURL: form.IllustrationURL,
	}, form.ID, nil
}

func decodeDreamJSON(r *http.Request) (services.DreamInput, string, error) {
	var req dreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.DreamInput{}, "", utils.NewValidationError("body", "Invalid request body")
	}
	return services.DreamInput{
		Title:           req.Title,
		Content:         req.Content,
		Notes:           req.Notes,
		Emotions:        req.Emotions,
		Mood:            req.Mood,
		Lucidity:        req.Lucidity,
		OccurredAt:      pickDate(req.DreamDate, req.DreamDateTime),
		IllustrationURL: req.IllustrationURL,
	}, req.ID, nil
}

func decodeDreamInput(w http.ResponseWriter, r *http.Request) (services.DreamInput, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDreamBody)
	if isFormRequest(r) {
		return decodeDreamForm(r)
	}
	return decodeDreamJSON(r)
}
