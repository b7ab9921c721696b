// Package config holds notehub-cli's local state.
//
// The CLI keeps a small YAML file (by default
// $XDG_CONFIG_HOME/notehub/cli.yaml) with the preferred server, output
// format and the admin session cookie saved by "notehub-cli login". The
// file is written with mode 0600 because the cookie is a bearer credential.
package config
