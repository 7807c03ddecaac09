package types

// SearchDocument is the index projection of a Restaurant. It is stored under
// the record id, which is not repeated in the body.
type SearchDocument struct {
	Name               string   `json:"name"`
	Category           string   `json:"category"`
	Address            string   `json:"address"`
	Phone              string   `json:"phone"`
	Photo              string   `json:"photo,omitempty"`
	Details            string   `json:"details,omitempty"`
	AutocompleteTokens []string `json:"autocompleteTokens"`
}

// IndexableDocument is a projection bound to its index key and the primary
// version it was derived from.
type IndexableDocument struct {
	Id      string
	Version int64
	Doc     SearchDocument
}

// Project derives the search document for r. It does no I/O and the same
// record always yields the same document.
func Project(r Restaurant) SearchDocument {
	return SearchDocument{
		Name:               r.Name,
		Category:           r.Category,
		Address:            r.Address,
		Phone:              r.Phone,
		Photo:              r.Photo,
		Details:            r.Details,
		AutocompleteTokens: []string{r.Name, r.Category},
	}
}

// GetIndexableDoc projects r and keys it by the record id.
func GetIndexableDoc(r Restaurant) IndexableDocument {
	return IndexableDocument{
		Id:      r.ID,
		Version: r.Version,
		Doc:     Project(r),
	}
}

// Restaurant rebuilds the record shape of a search hit.
func (d SearchDocument) Restaurant(id string) Restaurant {
	return Restaurant{
		ID:       id,
		Name:     d.Name,
		Category: d.Category,
		Address:  d.Address,
		Phone:    d.Phone,
		Photo:    d.Photo,
		Details:  d.Details,
	}
}
