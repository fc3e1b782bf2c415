package backend

import "fmt"

// Type names a storage implementation.
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}

// Types returns every supported backend type.
func Types() []Type {
	return []Type{SQLite, Memory}
}

// Config holds what New needs to open a backend.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; seed files are read from here. Defaults to "data".
	DataDirectory string
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLite && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}
