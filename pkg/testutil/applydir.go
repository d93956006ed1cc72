package testutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir describes the layout of a directory. The keys of the map represent
// filenames. Each value is either a string (for the content of a regular file
// with permission 0644), a File, or a Dir.
type Dir map[string]any

// File describes a file to create.
type File struct {
	Perm    os.FileMode
	Content string
}

// ApplyDir creates the given filesystem layout in the current directory.
func ApplyDir(dir Dir) {
	applyDir(dir, "")
}

func applyDir(dir Dir, prefix string) {
	for name, file := range dir {
		path := filepath.Join(prefix, name)
		switch file := file.(type) {
		case string:
			MustWriteFile(path, file)
		case File:
			err := os.WriteFile(path, []byte(file.Content), file.Perm)
			Must(err)
		case Dir:
			MustMkdirAll(path)
			applyDir(file, path)
		default:
			panic(fmt.Sprintf("file is neither string, File or Dir: %v", file))
		}
	}
}
