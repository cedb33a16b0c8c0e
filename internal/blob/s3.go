package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cozychat/internal/chat"
	"cozychat/internal/config"
)

// S3Store is an S3-backed implementation of chat.BlobStore. Objects live
// under <prefix>/<key> in the configured bucket. Credentials come from the
// default AWS chain, or from CHAT_S3_ACCESS_KEY / CHAT_S3_SECRET_KEY when
// both are set.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ chat.BlobStore = (*S3Store)(nil)

// NewS3Store creates an S3 store from configuration.
func NewS3Store(ctx context.Context, cfg config.BlobConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if access, secret := os.Getenv("CHAT_S3_ACCESS_KEY"), os.Getenv("CHAT_S3_SECRET_KEY"); access != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
	}, nil
}

// Put stores the object under key. The uploader splits large bodies into
// multipart uploads, so size is advisory here.
func (s *S3Store) Put(key string, r io.Reader, size int64) error {
	_, err := s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading object %q: %w", key, err)
	}
	return nil
}

// Get writes the object's content to w.
func (s *S3Store) Get(key string, w io.Writer) error {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
		}
		return fmt.Errorf("fetching object %q: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading object %q: %w", key, err)
	}
	return nil
}

// Stat returns the object's info.
func (s *S3Store) Stat(key string) (*chat.ObjectInfo, error) {
	out, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
		}
		return nil, fmt.Errorf("heading object %q: %w", key, err)
	}
	return &chat.ObjectInfo{Key: key, Size: aws.ToInt64(out.ContentLength)}, nil
}

// List returns the objects under prefix, sorted by key.
func (s *S3Store) List(prefix string) ([]chat.ObjectInfo, error) {
	full := s.objectKey(prefix)
	if !strings.HasSuffix(full, "/") {
		full += "/"
	}

	var objects []chat.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return nil, fmt.Errorf("listing objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			objects = append(objects, chat.ObjectInfo{
				Key:  key,
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
