package auth

import (
	"crypto/tls"
	"log/slog"
)

// Secret wraps a string that must never appear in logs, error messages,
// or %v/%+v formatting. It implements slog.LogValuer and fmt.Stringer so
// both structured logging and ad-hoc Printf calls redact it by default;
// callers that genuinely need the value must call Expose.
type Secret struct {
	value string
}

// NewSecret wraps v.
func NewSecret(v string) Secret { return Secret{value: v} }

// Expose returns the underlying value. Named distinctly from String so a
// reviewer sees every call site that deliberately opts out of redaction.
func (s Secret) Expose() string { return s.value }

func (s Secret) String() string { return "[REDACTED]" }

func (s Secret) GoString() string { return "auth.Secret{[REDACTED]}" }

// LogValue satisfies slog.LogValuer so a Secret embedded in a log
// attribute never writes its value even when the logger's level would
// otherwise include it.
func (s Secret) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Credentials holds everything needed to perform a certificate login:
// the account username/password, the application key issued by the
// exchange, and the client certificate used for mutually authenticated
// TLS against the certificate-login endpoint.
type Credentials struct {
	Username       Secret
	Password       Secret
	ApplicationKey Secret
	ClientCert     tls.Certificate
}
