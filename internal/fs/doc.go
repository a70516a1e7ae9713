// Package fs abstracts the file operations the disk pager and the local
// blob store perform, so tests can inject failures.
//
// Production code uses fs.Default ([LocalFS]). Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("pages", fs.Fault{FailOnSync: true})
//
// Calls carry no context.Context; local file operations cannot be
// interrupted at the syscall level.
package fs
