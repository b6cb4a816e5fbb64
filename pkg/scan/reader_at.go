package scan

import (
	"io"

	"github.com/quarrydata/quarry/pkg/errors"
	"github.com/quarrydata/quarry/pkg/objectstore"
)

// objectReaderAt adapts an objectstore.Reader to io.ReaderAt and io.Seeker
// so footer-seeking file formats can issue range reads against remote
// objects without buffering them whole.
type objectReaderAt struct {
	reader objectstore.Reader
	size   int64
	pos    int64
}

var (
	_ io.ReaderAt = (*objectReaderAt)(nil)
	_ io.Seeker   = (*objectReaderAt)(nil)
)

func newObjectReaderAt(r objectstore.Reader) *objectReaderAt {
	return &objectReaderAt{reader: r, size: int64(r.Size())}
}

func (r *objectReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New(errors.ErrorTypeValidation, "negative read offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}

	want := len(p)
	if want == 0 {
		return 0, nil
	}
	if off+int64(want) > r.size {
		want = int(r.size - off)
	}

	buf, err := r.reader.ReadRange(uint64(off), want)
	if err != nil {
		return 0, err
	}

	n := copy(p, buf)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *objectReaderAt) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = r.pos + offset
	case io.SeekEnd:
		next = r.size + offset
	default:
		return 0, errors.New(errors.ErrorTypeValidation, "invalid seek whence")
	}
	if next < 0 {
		return 0, errors.New(errors.ErrorTypeValidation, "seek before start of object")
	}
	r.pos = next
	return next, nil
}
