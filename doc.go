// Package treesync synchronizes file trees between the local filesystem and
// object stores such as Amazon S3 or MinIO.
//
// A sync lists the source and destination into snapshots, diffs them by size
// and modification time, then transfers new or changed entries and optionally
// deletes destination entries absent from the source. Modification times
// survive the round trip: object stores record them as user metadata, so a
// second sync of unchanged trees does nothing.
//
// Key features:
//   - One algorithm for every direction over the tree.Tree interface
//   - Bounded concurrency with cancellation that never abandons a write
//   - Include and exclude glob patterns applied to both sides
//   - Dry runs that report the planned actions
//   - Typed errors matchable with errors.Is
//
// Example usage:
//
//	client := treesync.New(treesync.WithConcurrency(8))
//
//	src := treesync.Location{Tree: localtree.New(), Root: "/data/models"}
//	dst := treesync.Location{Tree: s3tree.New(s3Client, "my-bucket"), Root: "models"}
//
//	report, err := client.Sync(ctx, src, dst, treesync.WithDelete(true))
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("transferred %d, deleted %d\n", report.Transferred, report.Deleted)
package treesync
