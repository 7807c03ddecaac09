package types

// MaxDetailsLength bounds the free-text details field, in runes.
const MaxDetailsLength = 2000

// Restaurant is the canonical record held by the primary store.
type Restaurant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Photo    string `json:"photo,omitempty"`
	Details  string `json:"details,omitempty"`
	// Version is bumped by the primary store on every committed mutation
	// and orders index writes for the same id.
	Version int64 `json:"-"`
}

// RestaurantInput carries the fields of a new record. The id is assigned by
// the primary store.
type RestaurantInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Photo    string `json:"photo,omitempty"`
	Details  string `json:"details,omitempty"`
}

// RestaurantPatch holds an update; nil fields are left unchanged.
type RestaurantPatch struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Address  *string `json:"address,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Photo    *string `json:"photo,omitempty"`
	Details  *string `json:"details,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p RestaurantPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Address == nil &&
		p.Phone == nil && p.Photo == nil && p.Details == nil
}
