package domain

import "time"

const (
	// TOTPAlgorithm is the HMAC hash used for code derivation
	TOTPAlgorithm = "SHA1"
	// TOTPDigits is the number of decimal digits in a code
	TOTPDigits = 6
	// TOTPPeriod is the length of one time step
	TOTPPeriod = 60 * time.Second
	// TOTPSecretSize is the number of random bytes in a shared secret (160 bits)
	TOTPSecretSize = 20

	// DefaultTOTPIssuer is shown by authenticator apps next to the account
	DefaultTOTPIssuer = "OneHealthShield"
	// DefaultEnrollmentWindow is the step tolerance while confirming enrollment
	DefaultEnrollmentWindow = 1
	// DefaultLoginWindow is the step tolerance for login verification
	DefaultLoginWindow = 2
)

// TOTPParams holds the process-wide TOTP configuration. It is built once at
// startup and shared by issuance and verification.
type TOTPParams struct {
	Issuer           string
	Algorithm        string
	Digits           int
	Period           time.Duration
	SecretSize       int
	EnrollmentWindow int
	LoginWindow      int
}

// DefaultTOTPParams returns the parameters used by this system
func DefaultTOTPParams() *TOTPParams {
	return &TOTPParams{
		Issuer:           DefaultTOTPIssuer,
		Algorithm:        TOTPAlgorithm,
		Digits:           TOTPDigits,
		Period:           TOTPPeriod,
		SecretSize:       TOTPSecretSize,
		EnrollmentWindow: DefaultEnrollmentWindow,
		LoginWindow:      DefaultLoginWindow,
	}
}

// TOTPGenerator defines the interface for TOTP secret issuance and code validation
type TOTPGenerator interface {
	// GenerateSecret generates a new Base32 encoded secret
	GenerateSecret() (string, error)
	// ProvisioningURI builds the otpauth:// URI for an account
	ProvisioningURI(accountName, secret string) string
	// QRCode renders a provisioning URI as a PNG data URI
	QRCode(uri string) (string, error)
	// CheckSecret rejects a client-supplied secret that is undecodable or
	// weaker than an issued one
	CheckSecret(secret string) error
	// ValidateCode checks a code against the current time and returns the
	// matched step offset
	ValidateCode(secret, code string, window int) (int, error)
}
