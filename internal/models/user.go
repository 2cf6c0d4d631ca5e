package models

// Credentials is the body of register and login requests.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by the login endpoint.
type TokenResponse struct {
	Token string `json:"token"`
}

// CurrentUser is the identity behind a token.
type CurrentUser struct {
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
	IsAdmin     bool   `json:"is_admin"`
}
