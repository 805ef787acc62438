package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3ClientInitializesOnce(t *testing.T) {
	f := New()

	const callers = 16
	clients := make([]*s3.Client, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], errs[i] = f.s3Client(context.Background())
		}(i)
	}
	wg.Wait()

	// Every caller must observe the same initialization outcome.
	for i := 1; i < callers; i++ {
		assert.Same(t, clients[0], clients[i])
		assert.Equal(t, errs[0], errs[i])
	}
	if errs[0] == nil {
		assert.NotNil(t, clients[0])
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	plain := []byte("%PDF-1.4 document body")

	sealed, err := Encrypt(plain, "order-password")
	require.NoError(t, err)
	assert.True(t, IsEnvelope(sealed))
	assert.False(t, IsEnvelope(plain))

	opened, err := Decrypt(sealed, "order-password")
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestDecryptWrongPassword(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), "right")
	require.NoError(t, err)

	_, err = Decrypt(sealed, "wrong")
	assert.ErrorContains(t, err, "authentication failed")
}

func TestDecryptRejectsPlainData(t *testing.T) {
	_, err := Decrypt([]byte("too short"), "pw")
	assert.Error(t, err)
}

func TestBytesLocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4 content"), 0o644))

	f := New()
	data, name, err := f.Bytes(context.Background(), p, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 content"), data)
	assert.Equal(t, "scan.pdf", name)

	data, _, err = f.Bytes(context.Background(), "file://"+p, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 content"), data)
}

func TestBytesLocalEncryptedFile(t *testing.T) {
	sealed, err := Encrypt([]byte("plaintext pdf"), "pw")
	require.NoError(t, err)

	dir := t.TempDir()
	p := filepath.Join(dir, "sealed.pdf")
	require.NoError(t, os.WriteFile(p, sealed, 0o644))

	f := New()
	data, _, err := f.Bytes(context.Background(), p, "pw")
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext pdf"), data)

	_, _, err = f.Bytes(context.Background(), p, "bad")
	assert.Error(t, err)
}

func TestBytesHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/docs/contract.pdf" {
			_, _ = w.Write([]byte("%PDF-1.4 remote"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New()
	data, name, err := f.Bytes(context.Background(), srv.URL+"/docs/contract.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 remote"), data)
	assert.Equal(t, "contract.pdf", name)

	_, _, err = f.Bytes(context.Background(), srv.URL+"/missing.pdf", "")
	assert.ErrorContains(t, err, "status 404")
}

func TestBytesMalformedS3Ref(t *testing.T) {
	f := New()
	_, _, err := f.Bytes(context.Background(), "s3://", "")
	assert.Error(t, err)
}
