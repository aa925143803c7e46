// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package s3 reads newline delimited JSON records from S3 objects and
// provides a datalake.Store which writes to an S3 bucket.
package s3

import (
	"context"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/json"
)

// IsURL reports whether loc names an S3 location rather than a local path.
func IsURL(loc string) bool {
	return strings.HasPrefix(loc, "s3://") || strings.HasPrefix(loc, "s3a://")
}

// ParseURL splits an s3:// or s3a:// URL into a bucket and a key. The key
// has no leading slash and may contain glob characters.
func ParseURL(loc string) (bucket, key string, err error) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", "", errors.Wrapf(err, "parsing '%s'", loc)
	}
	if u.Scheme != "s3" && u.Scheme != "s3a" {
		return "", "", errors.Errorf("unsupported scheme '%s' in '%s'", u.Scheme, loc)
	}
	if u.Host == "" {
		return "", "", errors.Errorf("no bucket in '%s'", loc)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Config holds what is needed to talk to S3. Empty credentials fall back to
// the SDK's default chain.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient builds an S3 client from conf.
func NewClient(conf Config) (s3iface.S3API, error) {
	awsConf := &aws.Config{Region: aws.String(conf.Region)}
	if conf.AccessKeyID != "" || conf.SecretAccessKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(conf.AccessKeyID, conf.SecretAccessKey, "")
	}
	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	return s3.New(sess), nil
}

// SrcOption is a functional option type for s3.Source.
type SrcOption func(s *Source)

// OptSrcURL is a SrcOption which sets the bucket and key pattern from an
// s3:// or s3a:// URL.
func OptSrcURL(loc string) SrcOption {
	return func(s *Source) {
		s.url = loc
	}
}

// OptSrcClient is a SrcOption which sets the S3 client, usually one from
// NewClient. It is required.
func OptSrcClient(svc s3iface.S3API) SrcOption {
	return func(s *Source) {
		s.svc = svc
	}
}

// OptSrcContext sets the context used for S3 requests.
func OptSrcContext(ctx context.Context) SrcOption {
	return func(s *Source) {
		s.ctx = ctx
	}
}

// Source is a datalake.Source which reads newline delimited json from all
// objects matching a key pattern.
type Source struct {
	datalake.Source

	url string
	svc s3iface.S3API
	ctx context.Context

	rs *RawSource
}

// NewSource returns a new Source with the options applied. The matching
// objects are listed up front.
func NewSource(opts ...SrcOption) (s *Source, err error) {
	s = &Source{ctx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	if s.url == "" {
		return nil, datalake.ConfigErrorf("s3 source needs a url")
	}
	bucket, pattern, err := ParseURL(s.url)
	if err != nil {
		return nil, datalake.ConfigErrorf("%v", err)
	}
	if s.svc == nil {
		return nil, datalake.ConfigErrorf("s3 source needs a client")
	}
	s.rs, err = NewRawSource(s.ctx, s.svc, bucket, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "getting raw s3 source")
	}
	s.Source = json.NewSourceFromRawSource(s.rs)
	return s, nil
}

// Close closes the object currently being read.
func (s *Source) Close() error {
	if c, ok := s.Source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Keys returns the object keys the source reads, in order.
func (s *Source) Keys() []string {
	return s.rs.keys
}

// RawSource is a datalake.RawSource over the objects in a bucket whose keys
// match a pattern. A pattern without glob characters is treated as a prefix.
// Keys with a path element starting with "." or "_" are skipped.
type RawSource struct {
	ctx    context.Context
	svc    s3iface.S3API
	bucket string

	keys   []string
	objIdx *uint64
}

// NewRawSource lists the matching objects. It is an error for nothing to
// match.
func NewRawSource(ctx context.Context, svc s3iface.S3API, bucket, pattern string) (*RawSource, error) {
	idx := uint64(0)
	rs := &RawSource{
		ctx:    ctx,
		svc:    svc,
		bucket: bucket,
		objIdx: &idx,
	}
	prefix := listPrefix(pattern)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	var matchErr error
	err := svc.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			ok, err := matchKey(pattern, prefix, key)
			if err != nil {
				matchErr = err
				return false
			}
			if ok {
				rs.keys = append(rs.keys, key)
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing s3://%s/%s", bucket, prefix)
	}
	if matchErr != nil {
		return nil, matchErr
	}
	if len(rs.keys) == 0 {
		return nil, errors.Errorf("no objects found at 's3://%s/%s'", bucket, pattern)
	}
	sort.Strings(rs.keys)
	return rs, nil
}

// listPrefix returns the part of pattern before its first glob character.
func listPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

func matchKey(pattern, prefix, key string) (bool, error) {
	if strings.HasSuffix(key, "/") || ignoredKey(strings.TrimPrefix(key, prefix)) {
		return false, nil
	}
	if prefix == pattern {
		return pattern == "" || key == pattern || strings.HasSuffix(pattern, "/") ||
			strings.HasPrefix(key, pattern+"/"), nil
	}
	// A pattern matching a "directory" matches everything under it.
	for p := key; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		ok, err := path.Match(pattern, p)
		if err != nil {
			return false, errors.Wrapf(err, "bad pattern '%s'", pattern)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func ignoredKey(rel string) bool {
	for _, elem := range strings.Split(rel, "/") {
		if strings.HasPrefix(elem, ".") || strings.HasPrefix(elem, "_") {
			return true
		}
	}
	return false
}

type objReader struct {
	bucket string
	key    string
	body   io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

func (o *objReader) Name() string {
	return o.key
}

func (o *objReader) Meta() map[string]interface{} {
	return map[string]interface{}{"bucket": o.bucket, "key": o.key}
}

// NextReader implements datalake.RawSource.
func (rs *RawSource) NextReader() (datalake.NamedReadCloser, error) {
	idx := atomic.AddUint64(rs.objIdx, 1) - 1
	if int(idx) >= len(rs.keys) {
		return nil, io.EOF
	}
	key := rs.keys[idx]

	result, err := rs.svc.GetObjectWithContext(rs.ctx, &s3.GetObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	return &objReader{bucket: rs.bucket, key: key, body: result.Body}, nil
}
