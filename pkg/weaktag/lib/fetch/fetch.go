// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch resolves corpus URIs to local files. Remote corpora are
// downloaded once into a cache directory keyed by URI hash and reused
// on later runs. A failed fetch aborts the run; nothing is retried.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ErrBadURI reports a corpus URI the resolver cannot interpret.
var ErrBadURI = errors.New("unresolvable corpus URI")

// s3API is the object-store surface the resolver needs.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config configures a Resolver.
type Config struct {
	// CacheDir holds downloaded corpora. Created on first use.
	CacheDir string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// S3Region selects the region for s3:// URIs.
	S3Region string

	// S3Endpoint points the S3 client at a custom endpoint with
	// path-style addressing, for MinIO and object-store testing.
	S3Endpoint string

	// Logger for fetch activity.
	Logger *zap.Logger
}

// Resolver maps corpus URIs to local file paths.
type Resolver struct {
	cacheDir string
	client   *http.Client
	s3       s3API
	region   string
	endpoint string
	logger   *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(config Config) (*Resolver, error) {
	// Validate config
	if config.CacheDir == "" {
		return nil, fmt.Errorf("fetch cache dir is required")
	}

	// Apply defaults for zero values
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Resolver{
		cacheDir: config.CacheDir,
		client:   config.HTTPClient,
		region:   config.S3Region,
		endpoint: config.S3Endpoint,
		logger:   config.Logger,
	}, nil
}

// Resolve returns a local path for uri. Plain paths and file:// URIs
// must already exist; http(s):// and s3:// URIs are downloaded into the
// cache unless a previous run already fetched them.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return r.cached(uri, func(w io.Writer) error {
			return r.downloadHTTP(ctx, uri, w)
		})
	case strings.HasPrefix(uri, "s3://"):
		return r.cached(uri, func(w io.Writer) error {
			return r.downloadS3(ctx, uri, w)
		})
	case strings.HasPrefix(uri, "file://"):
		return r.local(strings.TrimPrefix(uri, "file://"))
	default:
		return r.local(uri)
	}
}

func (r *Resolver) local(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrBadURI, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrBadURI, path)
	}
	return path, nil
}

// cached returns the cache path for uri, running download to fill it on
// a cache miss. Downloads land in a temp file first so a failed fetch
// never leaves a partial cache entry.
func (r *Resolver) cached(uri string, download func(io.Writer) error) (string, error) {
	sum := sha256.Sum256([]byte(uri))
	path := filepath.Join(r.cacheDir, hex.EncodeToString(sum[:]))
	if _, err := os.Stat(path); err == nil {
		r.logger.Info("corpus already cached", zap.String("uri", uri), zap.String("path", path))
		return path, nil
	}

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(r.cacheDir, ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := download(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("flush cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish cache file: %w", err)
	}

	r.logger.Info("fetched corpus", zap.String("uri", uri), zap.String("path", path))
	return path, nil
}

func (r *Resolver) downloadHTTP(ctx context.Context, uri string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadURI, uri, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %s", uri, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	return nil
}

func (r *Resolver) downloadS3(ctx context.Context, uri string, w io.Writer) error {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return err
	}
	client, err := r.s3Client(ctx)
	if err != nil {
		return err
	}
	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer obj.Body.Close()
	if _, err := io.Copy(w, obj.Body); err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	return nil
}

func (r *Resolver) s3Client(ctx context.Context) (s3API, error) {
	if r.s3 != nil {
		return r.s3, nil
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if r.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(r.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	opts := []func(*s3.Options){}
	if r.endpoint != "" {
		// For MinIO/testing
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &r.endpoint
			o.UsePathStyle = true
		})
	}
	r.s3 = s3.NewFromConfig(awsCfg, opts...)
	return r.s3, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s wants s3://bucket/key", ErrBadURI, uri)
	}
	return bucket, key, nil
}
