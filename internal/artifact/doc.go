// Package artifact implements the storage backends for uploaded PDFs.
//
//   - Local: files under a public asset root, served at a URL prefix
//   - Remote: files committed to a GitHub repository through the contents
//     API, served from a CDN mirror pinned to the branch
//
// Both satisfy service.ArtifactBackend. Paths handed to Store are relative
// slash-separated paths such as "class8/science/chapter-5-notes.pdf".
package artifact
