package domain

// TokenPair is what a completed authentication returns: the short-lived
// access token and the longer-lived refresh token, both JWTs.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds until access token expiry
}

// PendingTFA is returned from login when the account has two-factor
// enabled: no session tokens yet, just a narrow pre-verification token
// that the TFA endpoints accept.
type PendingTFA struct {
	PreTFAToken string `json:"pre_tfa_token"`
	TokenType   string `json:"token_type"` // always "pre_tfa"
	ExpiresIn   int64  `json:"expires_in"`
}
