package services

import (
	"bytes"
	"context"
	"crm_advocacia_go/config"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrSnapshotNotFound is returned when no object exists under the key
var ErrSnapshotNotFound = errors.New("snapshot não encontrado")

// SnapshotStore keeps archived snapshots under slash-separated keys
type SnapshotStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys under prefix in ascending order; prefix names a directory and ends with "/"
	List(ctx context.Context, prefix string) ([]string, error)
	IsConfigured() bool
}

// Storage is the global snapshot store
var Storage SnapshotStore

// InitializeStorage picks R2 when it is configured and reachable, the local filesystem otherwise
func InitializeStorage(cfg *config.Config) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		Storage = NewLocalStorage(cfg.StorageDir)
		log.Printf("Snapshot storage: local filesystem (%s)", cfg.StorageDir)
		return
	}

	r2, err := NewR2Storage(cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = r2.ping(ctx)
		cancel()
	}
	if err != nil {
		log.Printf("[WARNING] R2 storage unavailable: %v. Falling back to local storage.", err)
		Storage = NewLocalStorage(cfg.StorageDir)
		return
	}

	Storage = r2
	log.Printf("Snapshot storage: Cloudflare R2 (bucket %s)", cfg.R2BucketName)
}

// R2Storage stores snapshots in a Cloudflare R2 bucket through the S3 API
type R2Storage struct {
	client *s3.Client
	bucket string
}

func NewR2Storage(cfg *config.Config) (*R2Storage, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2AccessKeyID,
			cfg.R2SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{client: client, bucket: cfg.R2BucketName}, nil
}

func (r *R2Storage) IsConfigured() bool {
	return r.client != nil && r.bucket != ""
}

func (r *R2Storage) ping(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)})
	return err
}

func (r *R2Storage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

func (r *R2Storage) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get object from R2: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object from R2: %w", err)
	}
	return body, nil
}

func (r *R2Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list R2 objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// LocalStorage stores snapshots as files below baseDir
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

// IsConfigured returns true (local storage is always available)
func (l *LocalStorage) IsConfigured() bool {
	return true
}

func (l *LocalStorage) path(key string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(key))
}

func (l *LocalStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	full := l.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(full, body, 0644); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (l *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := os.ReadFile(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return body, nil
}

func (l *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	root := l.path(strings.TrimSuffix(prefix, "/"))

	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.baseDir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeKeySegment replaces anything outside [A-Za-z0-9._-] so a process number
// like "0001234-56.2024.8.06.0001" stays a single path segment
func SafeKeySegment(s string) string {
	s = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}

const snapshotVersionLayout = "20060102T150405.000Z"

// SnapshotPrefix is the directory holding every snapshot of one intimação
func SnapshotPrefix(practitionerID, processNumber string) string {
	return fmt.Sprintf("intimacoes/%s/%s/", SafeKeySegment(practitionerID), SafeKeySegment(processNumber))
}

// GenerateSnapshotKey creates the storage key for a raw intimação snapshot.
// Each collection that touches a row writes a new object; the row keeps the latest key.
func GenerateSnapshotKey(practitionerID, processNumber string, at time.Time) string {
	return SnapshotPrefix(practitionerID, processNumber) + at.UTC().Format(snapshotVersionLayout) + ".json"
}
