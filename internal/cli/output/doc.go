// Package output renders notehub-cli results.
//
// Results print as a table (go-pretty), JSON or YAML depending on the
// --output flag. Uploads report progress through ProgressBar.
package output
