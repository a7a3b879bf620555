package authsdk

// TokenPair is a completed authentication: both session tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// PendingTFA is the 202 login response for accounts with a second factor.
type PendingTFA struct {
	PreTFAToken string `json:"pre_tfa_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// User is the account shape the API returns.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	TFAEnabled bool   `json:"tfa_enabled"`
}

// Device types accepted by signup and enable-TFA.
const (
	DeviceTypeEmail         = "email"
	DeviceTypeCodeGenerator = "code_generator"
)

// SignupRequest creates an account, optionally enrolling a second factor.
type SignupRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Password   string `json:"password"`
	EnableTFA  bool   `json:"enable_tfa"`
	DeviceType string `json:"device_type,omitempty"`
}

// SignupResponse returns the account plus, for code-generator devices, the
// otpauth provisioning URI to render as a QR code.
type SignupResponse struct {
	User          User   `json:"user"`
	EnrollmentURI string `json:"enrollment_uri,omitempty"`
}

// QRCodeResponse carries the provisioning URI for an enrolled device.
type QRCodeResponse struct {
	URI string `json:"uri"`
}

// HealthResponse is the livez/readyz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
