package config

const redacted = "***REDACTED***"

// SecretString keeps API tokens out of logs: fmt and encoding/json see a placeholder.
type SecretString string

func (s SecretString) String() string { return redacted }

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw value. Only the HTTP client should need it.
func (s SecretString) Unmask() string {
	return string(s)
}
