package messages

// Envfile parser messages.
const (
	EnvfileLineErrorFmt            = "line %d: %w"
	EnvfileReadFailedFmt           = "read env file: %w"
	EnvfileExpectedKeyValue        = "expected KEY=VALUE"
	EnvfileUnterminatedQuotedValue = "unterminated quoted value"
	EnvfileInvalidQuotedSuffix     = "unexpected content after quoted value"
)
