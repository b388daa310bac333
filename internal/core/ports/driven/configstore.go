package driven

// ConfigStore is the persisted key/value view of kbase settings.
//
// Keys are dotted section paths ("ingestion.chunk_size", "watch.inbox_dir").
// The typed getters return the zero value for a missing key or a value of
// another type; GetFloat also accepts integers.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set writes through to storage.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is where the settings live; in-memory stores report ":memory:".
	Path() string
}
