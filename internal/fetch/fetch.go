// Package fetch resolves document references to raw bytes. A reference can be
// a local path, a file://, http(s):// or s3://bucket/key URL; payloads
// carrying the envelope magic are decrypted at rest with the order password.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Fetcher resolves document references. The zero value is not usable; call
// New. Safe for concurrent use.
type Fetcher struct {
	http *http.Client

	s3Once sync.Once
	s3     *s3.Client
	s3Err  error
}

// New builds a Fetcher. The S3 client is created lazily on first s3:// ref so
// hosts without AWS credentials can still use the other schemes.
func New() *Fetcher {
	return &Fetcher{
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Bytes resolves ref and returns the plaintext document. password is used
// only when the payload carries the encryption envelope; it is ignored
// otherwise.
func (f *Fetcher) Bytes(ctx context.Context, ref, password string) ([]byte, string, error) {
	data, name, err := f.raw(ctx, ref)
	if err != nil {
		return nil, "", err
	}

	if IsEnvelope(data) {
		plain, derr := Decrypt(data, password)
		if derr != nil {
			return nil, "", fmt.Errorf("decrypt %s: %w", ref, derr)
		}
		log.Debug().Str("ref", ref).Int("bytes", len(plain)).Msg("decrypted document envelope")
		data = plain
	}
	return data, name, nil
}

func (f *Fetcher) raw(ctx context.Context, ref string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return f.fromS3(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fromHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		return fromFile(strings.TrimPrefix(ref, "file://"))
	default:
		return fromFile(ref)
	}
}

func fromFile(p string) ([]byte, string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", p, err)
	}
	return data, path.Base(p), nil
}

func (f *Fetcher) fromHTTP(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", ref, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body of %s: %w", ref, err)
	}
	u, _ := url.Parse(ref)
	name := ""
	if u != nil {
		name = path.Base(u.Path)
	}
	return data, name, nil
}

// s3Client builds the client on first use so hosts without AWS credentials
// can still resolve the other schemes. References arrive from concurrent
// request handlers, so initialization runs at most once.
func (f *Fetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	f.s3Once.Do(func() {
		cfg, err := awscfg.LoadDefaultConfig(ctx)
		if err != nil {
			f.s3Err = fmt.Errorf("load aws config: %w", err)
			return
		}
		f.s3 = s3.NewFromConfig(cfg)
	})
	return f.s3, f.s3Err
}

func (f *Fetcher) fromS3(ctx context.Context, ref string) ([]byte, string, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || u.Path == "" {
		return nil, "", fmt.Errorf("malformed s3 reference %q", ref)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	client, err := f.s3Client(ctx)
	if err != nil {
		return nil, "", err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}

	// The upload service records the user-facing filename as object metadata.
	name := path.Base(key)
	if out.Metadata != nil {
		if n, ok := out.Metadata["name"]; ok && n != "" {
			name = n
		}
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("downloaded document from s3")
	return data, name, nil
}
