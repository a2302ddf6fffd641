package eventlog

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/fmd-data/sharing.report/internal/fmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(seq int64) *fmd.Event {
	e := fmd.NewEvent()
	e.Sequence = seq
	e.VertexZ = float64(seq) * 0.5
	e.FillGeometry()
	e.SetSignal(fmd.FMD1i, 3, int(100+seq), 0.6)
	return e
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	w, err := NewWriter(&buf, "unit test")
	require.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		require.NoError(t, w.Write(makeEvent(i)))
	}
	assert.Equal(t, 3, w.Count())
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "unit test", r.Comment())

	for i := int64(0); i < 3; i++ {
		e, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, i, e.Sequence)
		assert.Equal(t, 0.6, e.Signal(fmd.FMD1i, 3, int(100+i)))
	}
	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := NewReader(bytes.NewReader([]byte("not gzip at all")))
	assert.Error(t, err)
}

func TestReaderRejectsTruncatedStream(t *testing.T) {
	t.Parallel()
	// A bare gzip header with no gob payload fails header decoding.
	_, err := NewReader(bytes.NewReader([]byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff}))
	assert.Error(t, err)
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.fmdlog")

	events := []*fmd.Event{makeEvent(1), makeEvent(2)}
	require.NoError(t, WriteFile(path, "golden", events))

	got, comment, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "golden", comment)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[1].Sequence)
	assert.Equal(t, 1.0, got[1].VertexZ)
}
