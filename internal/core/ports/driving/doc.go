// Package driving provides interfaces through which external actors
// (CLI, watchers, future transports) drive the analysis core.
package driving
