package localfs

// ListOptions configures the behavior of ListDirectory.
type ListOptions struct {
	// IncludeHidden includes hidden files (starting with .) in results.
	// Default is false (hidden files excluded).
	IncludeHidden bool

	// DirsFirst sorts directories ahead of files. Within each group
	// entries are ordered case-insensitively by name.
	DirsFirst bool
}

// WalkOptions configures the behavior of Walk.
type WalkOptions struct {
	// IncludeHidden includes hidden files and directories in the walk.
	// Default is false (hidden items excluded).
	IncludeHidden bool

	// SkipHiddenDirs skips descending into hidden directories entirely.
	// Only meaningful when IncludeHidden is false.
	SkipHiddenDirs bool
}
