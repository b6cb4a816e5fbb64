package scan

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memReader is an in-memory objectstore.Reader for exercising the adapter
// without a store.
type memReader struct {
	data  []byte
	reads int
}

func (m *memReader) ReadRange(start uint64, length int) ([]byte, error) {
	m.reads++
	if length == 0 {
		return m.data[start:], nil
	}
	return m.data[start : start+uint64(length)], nil
}

func (m *memReader) Size() uint64 {
	return uint64(len(m.data))
}

func TestReadAt(t *testing.T) {
	data := []byte("0123456789")
	r := newObjectReaderAt(&memReader{data: data})

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("3456"), buf)
}

func TestReadAtClampsToEnd(t *testing.T) {
	data := []byte("0123456789")
	r := newObjectReaderAt(&memReader{data: data})

	buf := make([]byte, 8)
	n, err := r.ReadAt(buf, 6)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("6789"), buf[:n])
}

func TestReadAtPastEnd(t *testing.T) {
	r := newObjectReaderAt(&memReader{data: []byte("abc")})

	n, err := r.ReadAt(make([]byte, 1), 3)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)
}

func TestReadAtEmptyBuffer(t *testing.T) {
	mem := &memReader{data: []byte("abc")}
	r := newObjectReaderAt(mem)

	n, err := r.ReadAt(nil, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, mem.reads, "empty reads must not hit the store")
}

func TestSeek(t *testing.T) {
	r := newObjectReaderAt(&memReader{data: make([]byte, 100)})

	pos, err := r.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(100), pos)

	pos, err = r.Seek(-8, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(92), pos)

	pos, err = r.Seek(4, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(96), pos)

	pos, err = r.Seek(10, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	_, err = r.Seek(-1, io.SeekStart)
	assert.Error(t, err)
}
