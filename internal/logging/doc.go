// Package logging provides structured logging with optional file rotation.
// When the --debug flag is set, comprehensive logs are written to
// ~/.lodestar/logs/ for debugging and troubleshooting.
//
// By default (without --debug), logging goes to stderr only: human-readable
// text on a terminal, JSON otherwise.
package logging
