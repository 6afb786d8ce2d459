// Package fs abstracts the file system operations of the local blob store
// so tests can inject write failures.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("lineset", fs.Fault{FailAfterBytes: 0, Err: syscall.ENOSPC})
//
// There are no context parameters: local file operations are not
// interruptible at the syscall level.
package fs
