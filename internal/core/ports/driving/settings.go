package driving

import "github.com/custodia-labs/kbase/internal/core/domain"

// SettingsService reads and edits the persisted kbase settings.
type SettingsService interface {
	// Get returns the stored settings with defaults filled in for
	// anything unset.
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error

	// SetValue parses value for a dotted key such as "retrieval.top_k" and
	// rejects it with domain.ErrInvalidInput if it is out of range.
	SetValue(key, value string) error

	// SetEmbeddingProvider switches provider and model together. Changing
	// either invalidates existing vectors until documents are regenerated.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	Validate() error
	GetDefaults() domain.AppSettings
}
