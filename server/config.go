package server

// Config represents a server config
type Config struct {
	ListenAddr    string
	TLSListenAddr string
	TLSOnly       bool
	TLS           *TLSConfig
	Verbose       bool
	// DatabasePath is the SQLite database holding the tournaments
	DatabasePath string
	// SeedFile is an optional JSON array of tournaments loaded on start
	SeedFile string
	// PageSize is the number of tournaments per result page
	PageSize int
	// CacheSize bounds the number of cached result sets
	CacheSize int
}

// TLSConfig represents a TLS configuration
type TLSConfig struct {
	KeyFile  string
	CertFile string
}
