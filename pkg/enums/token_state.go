package enums

// TokenState is the push-token manager lifecycle state.
type TokenState string

const (
	TokenStateUninitialized TokenState = "uninitialized"
	TokenStateRequesting    TokenState = "requesting"
	TokenStateRegistered    TokenState = "registered"
	TokenStateRefreshing    TokenState = "refreshing"
	TokenStateFailed        TokenState = "failed"
)
