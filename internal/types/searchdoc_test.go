package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greenTable() Restaurant {
	return Restaurant{
		ID:       "652f1c2e9b1e8a0012345678",
		Name:     "Green Table",
		Category: "Vegan",
		Address:  "12 Elm St",
		Phone:    "+15551234567",
		Version:  3,
	}
}

func TestProject(t *testing.T) {
	r := greenTable()
	r.Photo = "https://img.example.com/green.jpg"
	r.Details = "Plant based"

	doc := Project(r)

	assert.Equal(t, "Green Table", doc.Name)
	assert.Equal(t, "Vegan", doc.Category)
	assert.Equal(t, "12 Elm St", doc.Address)
	assert.Equal(t, "+15551234567", doc.Phone)
	assert.Equal(t, r.Photo, doc.Photo)
	assert.Equal(t, r.Details, doc.Details)
	assert.Equal(t, []string{"Green Table", "Vegan"}, doc.AutocompleteTokens)
}

func TestProject_Deterministic(t *testing.T) {
	r := greenTable()
	assert.Equal(t, Project(r), Project(r))
}

func TestProject_TokensKeepOrderAndDuplicates(t *testing.T) {
	r := greenTable()
	r.Name = "pizza"
	r.Category = "pizza"

	assert.Equal(t, []string{"pizza", "pizza"}, Project(r).AutocompleteTokens)
}

func TestProject_BodyOmitsID(t *testing.T) {
	data, err := json.Marshal(Project(greenTable()))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.NotContains(t, body, "id")
	assert.NotContains(t, body, "_id")
	assert.Contains(t, body, "autocompleteTokens")
}

func TestGetIndexableDoc(t *testing.T) {
	r := greenTable()
	doc := GetIndexableDoc(r)

	assert.Equal(t, r.ID, doc.Id)
	assert.Equal(t, int64(3), doc.Version)
	assert.Equal(t, Project(r), doc.Doc)
}

func TestSearchDocument_Restaurant(t *testing.T) {
	r := greenTable()
	got := Project(r).Restaurant(r.ID)

	r.Version = 0
	assert.Equal(t, r, got)
}

func TestRestaurantPatch(t *testing.T) {
	category := "Bistro"
	p := RestaurantPatch{Category: &category}

	assert.False(t, p.IsEmpty())
	assert.True(t, RestaurantPatch{}.IsEmpty())

	empty := ""
	assert.False(t, RestaurantPatch{Photo: &empty}.IsEmpty())
}
