package dto

// LoginRequest carries the credentials for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPairResponse is the issued access/refresh token pair.
type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshRequest carries a refresh token to exchange for a new pair.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}
