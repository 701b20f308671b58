package models

// ExchangeBinding is one entry of the config's `exchanges` list: credential
// material plus free-form driver options, keyed by a unique name. Read-only
// after load, safe to share across goroutines.
type ExchangeBinding struct {
	Name       string         `yaml:"name"`
	APIKey     string         `yaml:"api_key"`
	Secret     string         `yaml:"secret"`
	Passphrase string         `yaml:"passphrase"`
	Options    map[string]any `yaml:"options"`
}

// Option returns a string driver option, or def when absent.
func (b *ExchangeBinding) Option(key, def string) string {
	if v, ok := b.Options[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}
