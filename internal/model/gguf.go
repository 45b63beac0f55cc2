package model

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

var ggufMagic = []byte("GGUF")

// checkArtifact verifies path is a readable regular file with a GGUF header.
func checkArtifact(path string) error {
	if path == "" {
		return &LoadError{Path: path, Reason: ReasonUnreadable, Err: errors.New("empty model path")}
	}
	f, err := os.Open(path)
	if err != nil {
		return &LoadError{Path: path, Reason: ReasonUnreadable, Err: err}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return &LoadError{Path: path, Reason: ReasonUnreadable, Err: err}
	}
	if fi.IsDir() {
		return &LoadError{Path: path, Reason: ReasonInvalid, Err: errors.New("path is a directory")}
	}
	head := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return &LoadError{Path: path, Reason: ReasonInvalid, Err: errors.Wrap(err, "read header")}
	}
	if !bytes.Equal(head, ggufMagic) {
		return &LoadError{Path: path, Reason: ReasonInvalid, Err: errors.Errorf("bad magic %q", head)}
	}
	return nil
}
