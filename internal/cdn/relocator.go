// Package cdn copies legacy images into object storage and returns their
// new public URLs.
package cdn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"golang.org/x/time/rate"

	"github.com/dsas-mobility/fleet-migration/internal/config"
)

// maxImageBytes caps a single download.
const maxImageBytes = 32 << 20

// Cache remembers where a source URL was relocated to. Keys come from
// CacheKey, so the same image relocated under two names is two entries.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, publicURL string) error
}

// CacheKey identifies one relocation of sourceURL under name.
func CacheKey(sourceURL, name string) string {
	return name + "|" + sourceURL
}

// S3Relocator downloads an image and stores it under folder/name in a bucket.
// Uploads overwrite, so relocating the same name twice is harmless.
type S3Relocator struct {
	client        s3iface.S3API
	httpClient    *http.Client
	bucket        string
	region        string
	folder        string
	publicBaseURL string
	retryCount    int
	backoff       time.Duration
	maxBytes      int64
	limiter       *rate.Limiter
	cache         Cache
}

// NewS3Relocator creates a relocator from configuration. cache may be nil.
func NewS3Relocator(cfg config.CDNConfig, cache Cache) (*S3Relocator, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newRelocator(s3.New(sess), cfg, cache), nil
}

func newRelocator(client s3iface.S3API, cfg config.CDNConfig, cache Cache) *S3Relocator {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	retries := cfg.RetryCount
	if retries < 1 {
		retries = 1
	}
	return &S3Relocator{
		client:        client,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		folder:        cfg.Folder,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		retryCount:    retries,
		backoff:       time.Second,
		maxBytes:      maxImageBytes,
		limiter:       rate.NewLimiter(limit, 1),
		cache:         cache,
	}
}

// Relocate copies sourceURL to object storage under name and returns the
// public URL of the copy.
func (r *S3Relocator) Relocate(ctx context.Context, sourceURL, name string) (string, error) {
	cacheKey := CacheKey(sourceURL, name)
	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx, cacheKey); err != nil {
			slog.Warn("relocation cache lookup failed", "url", sourceURL, "error", err)
		} else if ok {
			slog.Debug("relocation cache hit", "url", sourceURL, "public_url", cached)
			return cached, nil
		}
	}

	src, err := EncodeURL(sourceURL)
	if err != nil {
		return "", err
	}

	body, contentType, err := r.fetch(ctx, src.String())
	if err != nil {
		return "", err
	}

	key := path.Join(r.folder, name+strings.ToLower(path.Ext(src.Path)))
	_, err = r.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	publicURL := r.publicURL(key)
	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, publicURL); err != nil {
			slog.Warn("relocation cache store failed", "url", sourceURL, "error", err)
		}
	}
	return publicURL, nil
}

// fetch downloads the image with retry logic
func (r *S3Relocator) fetch(ctx context.Context, src string) ([]byte, string, error) {
	var lastErr error

	for attempt := 0; attempt < r.retryCount; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		body, contentType, err := r.fetchOnce(ctx, src)
		if err == nil {
			return body, contentType, nil
		}

		lastErr = err
		if attempt < r.retryCount-1 {
			waitTime := time.Duration(attempt+1) * r.backoff
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, "", fmt.Errorf("failed after %d attempts: %w", r.retryCount, lastErr)
}

// fetchOnce performs a single download attempt
func (r *S3Relocator) fetchOnce(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > r.maxBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", r.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

func (r *S3Relocator) publicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	escaped := strings.Join(segments, "/")

	if r.publicBaseURL != "" {
		return r.publicBaseURL + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", r.bucket, r.region, escaped)
}

// EncodeURL parses a legacy URL that may carry unescaped characters such as
// spaces or a stray %, and returns it in escaped form.
func EncodeURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		var retryErr error
		if u, retryErr = url.Parse(escapeBarePercent(trimmed)); retryErr != nil {
			return nil, fmt.Errorf("invalid source url %q: %w", raw, err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid source url %q: unsupported scheme", raw)
	}
	return u, nil
}

// escapeBarePercent rewrites every % that does not start a valid escape
// sequence as %25.
func escapeBarePercent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
