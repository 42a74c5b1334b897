package types

// Metadata is a map of string key-value pairs attached to domain entities
type Metadata map[string]string
