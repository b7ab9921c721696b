// Package command defines notehub-cli's commands on urfave/cli/v2.
//
// Commands:
//
//   - login, logout, whoami: manage the saved admin session
//   - chapters list|get: read the public catalog
//   - upload: submit chapter PDFs (requires login)
//   - backup: download the chapter overlay (requires login)
//   - ping: check the server's health endpoint
//   - hash-password, gen-secret: produce server credentials offline
//   - shell: run the above interactively
package command
