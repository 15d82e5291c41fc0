package config

// Loader defines the interface for configuration loaders
type Loader interface {
	// Load applies defaults, reads the source into target and validates it
	Load(target any) error
}
