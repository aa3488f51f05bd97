package domain

// Setting keys persisted per user. They mirror the keys the browser client
// historically kept in local storage.
const (
	SettingAPIKey = "openai_api_key"
	SettingModel  = "openai_model"
)

// DefaultModel is used when the user has not chosen a model.
const DefaultModel = "o4-mini"

// Credentials is the advisory configuration of one user. Both values are
// opaque; the service never validates their format.
type Credentials struct {
	APIKey string
	Model  string
}

// HasAPIKey reports whether a bearer token is configured.
func (c Credentials) HasAPIKey() bool {
	return c.APIKey != ""
}
