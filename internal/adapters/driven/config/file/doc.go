// Package file provides the TOML-file implementation of driven.ConfigStore.
//
// The file holds framework tuning plus [[servers]] and [[integrations]]
// tables. A .env file next to it is read before ${VAR} references are
// expanded, so credentials can stay out of the TOML itself.
package file
