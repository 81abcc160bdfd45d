package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/domain/entities"
)

func TestNoteLifecycle(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/notes", `{"title":"Groceries","content":"milk, eggs","tags":["home","errands"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[entities.Note](t, rec)
	assert.Equal(t, "Groceries", created.Title)
	assert.Equal(t, []string{"home", "errands"}, created.Tags)

	rec = api.do(t, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[entities.Note](t, rec).ID)

	rec = api.do(t, http.MethodPut, "/notes/"+created.ID, `{"content":"milk, eggs, bread"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[entities.Note](t, rec)
	assert.Equal(t, "milk, eggs, bread", updated.Content)
	assert.Equal(t, "Groceries", updated.Title)

	rec = api.do(t, http.MethodDelete, "/notes/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/notes/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "not found")
}

func TestNoteValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/notes", `{"content":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/notes", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request format", decode[ErrorResponse](t, rec).Error)
}

func TestNoteListFiltersAndTags(t *testing.T) {
	api := newTestAPI(t)
	for _, body := range []string{
		`{"title":"Plan trip","content":"book train","tags":["travel"]}`,
		`{"title":"Budget","content":"train tickets","tags":["money","travel"]}`,
		`{"title":"Read","content":"finish novel"}`,
	} {
		require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/notes", body).Code)
	}

	rec := api.do(t, http.MethodGet, "/notes?tag=travel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entities.Note](t, rec), 2)

	rec = api.do(t, http.MethodGet, "/notes?tag=travel&q=budget", "")
	notes := decode[[]entities.Note](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, "Budget", notes[0].Title)

	rec = api.do(t, http.MethodGet, "/notes/tags", "")
	assert.Equal(t, map[string]int{"travel": 2, "money": 1}, decode[map[string]int](t, rec))

	rec = api.do(t, http.MethodGet, "/notes/stats", "")
	stats := decode[entities.NoteStats](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.WithTags)
	assert.Equal(t, 1, stats.WithoutTags)
}

func TestNoteImport(t *testing.T) {
	api := newTestAPI(t)

	body := `{"version":"1.0","notes":[
		{"id":"n1","title":"Kept","content":"body","tags":[]},
		{"id":"n2","title":"No content","tags":[]}
	]}`
	rec := api.do(t, http.MethodPost, "/notes/import", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[CountResponse](t, rec).Count)

	rec = api.do(t, http.MethodPost, "/notes/import", `"not a document"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/notes", "")
	notes := decode[[]entities.Note](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
}
