// Package file loads the doclens configuration from a TOML file.
// Values absent from the file fall back to the built-in defaults, and
// the merged configuration is validated before use.
package file
