// Package internal holds build-time constants shared by every command
// in cmd/, consumed by cli's version subcommand.
package internal

// Version is the current release version of this module's executables.
const Version = "0.1.0"
