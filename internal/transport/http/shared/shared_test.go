package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3", nil)
	p := ParsePagination(req, 20, 100)
	assert.Equal(t, Pagination{Limit: 100, Offset: 0}, p)

	req = httptest.NewRequest(http.MethodGet, "/?limit=5&offset=10", nil)
	assert.Equal(t, Pagination{Limit: 5, Offset: 10}, ParsePagination(req, 20, 100))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-03")
	assert.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))

	d, err = ParseDate("2025-03-03T09:00:00Z")
	assert.NoError(t, err)
	assert.Equal(t, 9, d.Hour())

	_, err = ParseDate("03/03/2025")
	assert.Error(t, err)
}

func TestParseYear(t *testing.T) {
	year, ok := ParseYear("2025")
	assert.True(t, ok)
	assert.Equal(t, 2025, year)
	_, ok = ParseYear("25x")
	assert.False(t, ok)
	_, ok = ParseYear("1900")
	assert.False(t, ok)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ok"}`))
	assert.True(t, DecodeJSON(rec, req, &dst, ""))
	assert.Equal(t, "ok", dst.Title)

	for _, body := range []string{`{"title":"x","extra":1}`, `{"title":"x"}{}`, `not json`} {
		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.False(t, DecodeJSON(rec, req, &dst, ""), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestValidatorSortsIssues(t *testing.T) {
	v := NewValidator()
	v.Required("title", " ", "required")
	v.Enum("urgency", "LOW", []string{"NORMAL", "URGENT"}, "must be NORMAL or URGENT")
	v.Enum("urgency2", "", []string{"NORMAL"}, "ignored when empty")
	assert.True(t, v.HasIssues())
	assert.Equal(t, []ValidationIssue{
		{Field: "title", Reason: "required"},
		{Field: "urgency", Reason: "must be NORMAL or URGENT"},
	}, v.Issues())

	rec := httptest.NewRecorder()
	assert.True(t, v.Reject(rec, "req-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fields"`)
}
