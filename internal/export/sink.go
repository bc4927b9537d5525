// export выгружает пре-рендеренные страницы блога как статический сайт.
//
// Sink — куда пишутся файлы: каталог на диске (dir) или бакет MinIO/S3 (s3).
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
)

// Sink принимает файлы сайта. name — относительный путь со слешами ("post/p1/index.html").
type Sink interface {
	Put(ctx context.Context, name string, body []byte, contentType string) error
}

// NewSink собирает Sink по конфигу.
func NewSink(ctx context.Context, cfg config.ExportConfig) (Sink, error) {
	switch cfg.Sink {
	case "", "dir":
		return NewDirSink(cfg.Dir), nil
	case "s3":
		return NewMinioSink(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("export.NewSink: unknown sink %q", cfg.Sink)
	}
}

// DirSink пишет файлы в каталог.
type DirSink struct {
	root string
}

func NewDirSink(root string) *DirSink { return &DirSink{root: root} }

func (s *DirSink) Put(_ context.Context, name string, body []byte, _ string) error {
	const op = "export.DirSink.Put"

	clean, err := cleanName(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	dst := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.WriteFile(dst, body, 0o644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MinioSink пишет файлы в бакет MinIO/S3 под префиксом.
type MinioSink struct {
	client *mclient.Client
	bucket string
	prefix string
}

// NewMinioSink создаёт клиент MinIO.
// Нормализует endpoint (убирает схему), подбирает Secure по схеме
// и выполняет fail-fast-проверку наличия бакета.
func NewMinioSink(ctx context.Context, cfg config.S3Config) (*MinioSink, error) {
	const op = "export.NewMinioSink"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.RootUser, cfg.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &MinioSink{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *MinioSink) Put(ctx context.Context, name string, body []byte, contentType string) error {
	const op = "export.MinioSink.Put"

	clean, err := cleanName(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := clean
	if s.prefix != "" {
		key = path.Join(s.prefix, clean)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), mclient.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=300",
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// cleanName запрещает выход за корень ("..") и пустые имена.
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid file name %q", name)
		}
	}

	clean := path.Clean(name)
	if clean == "." || clean == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	return clean, nil
}
