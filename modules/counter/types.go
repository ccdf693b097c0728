package counter

import "github.com/example/socket-playground-demo/domain/identity"

// MutateRequest is the request for increment, decrement and reset services.
type MutateRequest struct {
	Actor identity.Identity `json:"actor"`
}

// SetRequest is the request for the set service.
type SetRequest struct {
	Actor identity.Identity `json:"actor"`
	Value int64             `json:"value"`
}

// MutateResponse is the response for every counter mutation service.
type MutateResponse struct {
	Count     int64             `json:"count"`
	UpdatedBy identity.Identity `json:"updated_by"`
}

// GetRequest is the request for the get service.
type GetRequest struct{}

// GetResponse is the response for the get service. LastUpdatedBy is nil
// until the first mutation.
type GetResponse struct {
	Count         int64              `json:"count"`
	LastUpdatedBy *identity.Identity `json:"last_updated_by,omitempty"`
}
