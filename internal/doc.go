// Package internal contains the private building blocks of treesync.
//
// The internal packages are organized as follows:
//   - sync: scanning, planning and executing a sync between two trees
//   - pathmap: translating paths between a source and a destination root
//   - pool: the bounded worker pool actions run on
//   - s3api: the S3 client surface used by the s3 tree
//   - objectmeta: object metadata carrying modification times
//   - config, credentials, location: command-line configuration and addressing
//   - watch: re-running a sync when a local tree changes
//   - validation: bucket and key validation
//   - testutil: fakes and generators shared by tests
package internal
