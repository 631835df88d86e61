package models

// Reserved document keys. They are owned by the stores and never taken from
// a request payload.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
	FieldLocation  = "location"
)

// UserRecord is a user's profile document as returned by GET /users/{id}.
// Fields holds arbitrary profile attributes (email, name, ...).
type UserRecord struct {
	ID       string
	Fields   map[string]any
	Location *Location
}

// Location is the public latitude/longitude pair of a user.
type Location struct {
	Latitude  float64 `json:"latitude" example:"-23.5"`
	Longitude float64 `json:"longitude" example:"-46.6"`
}

// LocationPoint is the geo row stored for a user, keyed by UserID.
type LocationPoint struct {
	UserID    string
	Latitude  float64
	Longitude float64
}

// Location returns the public view of the point.
func (p LocationPoint) Location() Location {
	return Location{Latitude: p.Latitude, Longitude: p.Longitude}
}

// ToMap flattens the record into the JSON shape served by the API.
func (u UserRecord) ToMap() map[string]any {
	out := make(map[string]any, len(u.Fields)+2)
	for k, v := range u.Fields {
		out[k] = v
	}
	out[FieldID] = u.ID
	if u.Location != nil {
		out[FieldLocation] = *u.Location
	}
	return out
}

// CreateUserRequest documents the body accepted by POST /users. Additional
// profile attributes are stored as-is.
type CreateUserRequest struct {
	Email    string    `json:"email" example:"john@example.com"`
	Name     string    `json:"name" example:"John Doe"`
	Location *Location `json:"location,omitempty"`
}

// UpdateUserRequest documents the body accepted by PUT /users/{id}. Any
// subset of profile attributes may be sent.
type UpdateUserRequest struct {
	Email    string    `json:"email,omitempty" example:"john@example.com"`
	Name     string    `json:"name,omitempty" example:"John Doe"`
	Location *Location `json:"location,omitempty"`
}

// WriteResponse is returned by create and update.
type WriteResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
