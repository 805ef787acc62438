package reader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/docpricer/internal/filetype"
)

type fakeDoc struct {
	texts  []string
	errIdx map[int]error
	closed bool
}

func (d *fakeDoc) NumPage() int { return len(d.texts) }

func (d *fakeDoc) Text(i int) (string, error) {
	if err, ok := d.errIdx[i]; ok {
		return "", err
	}
	return d.texts[i], nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeOpener struct {
	doc *fakeDoc
	err error
}

func (o fakeOpener) Open(data []byte) (Doc, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func TestPageCountShortCircuits(t *testing.T) {
	r := NewWithOpener(fakeOpener{err: errors.New("should not be opened")})

	n, err := r.PageCount(nil, filetype.KindDOCX)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.PageCount(nil, filetype.KindImage)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPageCountUnknownKind(t *testing.T) {
	r := NewWithOpener(fakeOpener{})
	_, err := r.PageCount(nil, filetype.KindUnknown)
	assert.Error(t, err)
}

func TestPageCountFallsBackToOpener(t *testing.T) {
	// Garbage bytes make pdfcpu fail; the opener provides the second opinion.
	doc := &fakeDoc{texts: []string{"a", "b", "c"}}
	r := NewWithOpener(fakeOpener{doc: doc})

	n, err := r.PageCount([]byte("not a pdf"), filetype.KindPDF)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPageCountBothBackendsFail(t *testing.T) {
	r := NewWithOpener(fakeOpener{err: errors.New("broken")})
	_, err := r.PageCount([]byte("not a pdf"), filetype.KindPDF)
	assert.Error(t, err)
}

func TestExtractPages(t *testing.T) {
	doc := &fakeDoc{
		texts:  []string{"first page text", "", "third"},
		errIdx: map[int]error{1: errors.New("damaged stream")},
	}
	r := NewWithOpener(fakeOpener{doc: doc})

	pages, err := r.ExtractPages(nil)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.True(t, pages[0].Recoverable)
	assert.Equal(t, "first page text", pages[0].Text)
	assert.False(t, pages[1].Recoverable)
	assert.True(t, pages[2].Recoverable)
	assert.True(t, doc.closed)
}

func TestExtractPagesOpenFailure(t *testing.T) {
	r := NewWithOpener(fakeOpener{err: errors.New("encrypted beyond repair")})
	_, err := r.ExtractPages(nil)
	assert.Error(t, err)
}
