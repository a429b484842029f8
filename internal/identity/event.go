package identity

// Origin names the source of an identity event. All origins are normalized
// into the same Event shape before touching storage so the merge invariant
// lives in one place.
type Origin string

const (
	OriginOAuth       Origin = "oauth"
	OriginWebhook     Origin = "webhook"
	OriginMagicLink   Origin = "magic_link"
	OriginCredentials Origin = "credentials"
)

// Event is the normalized identity event consumed by the reconciler.
// ExternalID is empty for origins that do not issue provider ids.
type Event struct {
	Origin     Origin
	ExternalID string
	Email      string
	GivenName  string
	FamilyName string
	AvatarURL  string
}
