package billy

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
)

// File adapts a go-billy file to fs.File. Name reports the path as presented
// to FS, which may differ from the underlying file's name on OS backed
// filesystems.
type File struct {
	file billy.File
	name string
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	if errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	return n, f.wrap("read", err)
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	return n, f.wrap("write", err)
}

func (f *File) Close() error {
	return f.wrap("close", f.file.Close())
}

func (f *File) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("billy: %s %q: %w", op, f.name, err)
}
