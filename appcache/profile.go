package appcache

// User is the profile record returned by the account service. The id field is
// "_id" on the wire.
type User struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Premium   bool   `json:"premium"`
}

// Profile is the cached value for a user id.
type Profile struct {
	User User `json:"user"`
}
