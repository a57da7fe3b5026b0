package constants

// Context and session keys
const (
	ContextKeyUserID   = "user_id"
	SessionKeyExpiry   = "token_exp"
	SessionCookieName  = "pm_session"
	ClerkSessionCookie = "__session"
	SessionMaxAge      = 86400 * 7
)

// Headers
const (
	HeaderOrigin         = "Origin"
	HeaderEventSignature = "X-Inngest-Signature"
)

// EventSignatureMaxAgeSeconds bounds how old a signed ingress request may be.
const EventSignatureMaxAgeSeconds = 300
