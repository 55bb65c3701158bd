package model

// Ref carries a backend identifier.  Some endpoints answer with "_id",
// others with "id"; Key returns whichever is set.
type Ref struct {
	ID  string `json:"id,omitempty"`
	OID string `json:"_id,omitempty"`
}

// Key returns the identifier, preferring "id" over "_id".
func (r Ref) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.OID
}
