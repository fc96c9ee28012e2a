package oauth

// RedactedToken wraps a secret (access token, refresh token, authorization
// code, client secret) so that formatting it never prints the value.
//
//	token := oauth.NewRedactedToken("secret-token-value")
//	fmt.Println(token)           // prints: [REDACTED]
//	actualValue := token.Value() // returns: "secret-token-value"
type RedactedToken struct {
	value string
}

// NewRedactedToken creates a new RedactedToken wrapping the given value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped secret. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t RedactedToken) String() string {
	if t.value == "" {
		return "[EMPTY]"
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer.
func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{" + t.String() + "}"
}

// IsEmpty returns true if the token value is empty.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MarshalJSON implements json.Marshaler.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}
