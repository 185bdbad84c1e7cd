package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by the store.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the client. Endpoint and PathStyle support MinIO or
// localstack deployments.
type S3Options struct {
	Region    string `json:"region" yaml:"region" toml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	PathStyle bool   `json:"path_style" yaml:"path_style" toml:"path_style"`
}

type S3 struct {
	client S3API
}

// NewS3 loads the default AWS configuration chain (env, shared config, IMDS).
func NewS3(ctx context.Context, opt S3Options) (*S3, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opt.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opt.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
		}
		o.UsePathStyle = opt.PathStyle
	})
	return &S3{client: client}, nil
}

// NewS3FromClient wraps an existing client.
func NewS3FromClient(c S3API) *S3 { return &S3{client: c} }

func s3Location(uri string) (Location, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != "s3" {
		return Location{}, fmt.Errorf("%w: s3 store got %s", ErrUnsupportedScheme, loc.Scheme)
	}
	return loc, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]Object, error) {
	loc, err := s3Location(prefix)
	if err != nil {
		return nil, err
	}
	key := loc.Key
	if key != "" && !strings.HasSuffix(key, "/") && !strings.Contains(key[strings.LastIndex(key, "/")+1:], ".") {
		key += "/"
	}
	var out []Object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(key),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", loc.Bucket, key, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if hiddenBelow(key, k) {
				continue
			}
			out = append(out, Object{
				URI:      Location{Scheme: "s3", Bucket: loc.Bucket, Key: k}.String(),
				Key:      k,
				Size:     aws.ToInt64(obj.Size),
				ETag:     strings.Trim(aws.ToString(obj.ETag), `"`),
				Modified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *S3) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := s3Location(uri)
	if err != nil {
		return nil, err
	}
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	return res.Body, nil
}

func (s *S3) Put(ctx context.Context, uri string, r io.ReadSeeker, size int64) error {
	loc, err := s3Location(uri)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", uri, err)
	}
	return nil
}

// Default returns a Mux serving file:// from the local filesystem and s3://
// through an S3 client built from opt.
func Default(ctx context.Context, opt S3Options) (*Mux, error) {
	s, err := NewS3(ctx, opt)
	if err != nil {
		return nil, err
	}
	return NewMux().Handle("file", Local{}).Handle("s3", s), nil
}
