// Package confloader loads layered configuration with koanf.
//
// Sources are merged in order, later ones winning:
//
//  1. Defaults taken from the target struct
//  2. A YAML configuration file
//  3. Alias environment variables (deployment-specific names)
//  4. Prefixed environment variables (NOTEHUB_SECTION_KEY)
//
// Prefixed variables are matched against the koanf tags of the target, so
// keys that contain underscores (auth.session_ttl) resolve correctly.
// Watcher reports writes to a configuration file via fsnotify.
package confloader
