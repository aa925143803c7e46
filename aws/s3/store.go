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

package s3

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
)

// maxDeleteBatch is the most keys a DeleteObjects request accepts.
const maxDeleteBatch = 1000

// Store is a datalake.Store which writes objects under a prefix in a bucket.
type Store struct {
	svc      s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewStore returns a Store writing under the s3:// or s3a:// URL root.
func NewStore(svc s3iface.S3API, root string) (*Store, error) {
	bucket, prefix, err := ParseURL(root)
	if err != nil {
		return nil, err
	}
	return &Store{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
	}, nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) dirPrefix(dir string) string {
	p := s.key(dir)
	if p == "" {
		return ""
	}
	return p + "/"
}

// Exists reports whether any object lives under dir.
func (s *Store) Exists(ctx context.Context, dir string) (bool, error) {
	out, err := s.svc.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirPrefix(dir)),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return false, errors.Wrapf(err, "listing %s", dir)
	}
	return len(out.Contents) > 0, nil
}

// RemoveAll deletes every object under dir.
func (s *Store) RemoveAll(ctx context.Context, dir string) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.dirPrefix(dir)),
	}
	var batch []*s3.ObjectIdentifier
	var delErr error
	err := s.svc.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			batch = append(batch, &s3.ObjectIdentifier{Key: obj.Key})
			if len(batch) == maxDeleteBatch {
				if delErr = s.deleteBatch(ctx, batch); delErr != nil {
					return false
				}
				batch = batch[:0]
			}
		}
		return true
	})
	if err != nil {
		return errors.Wrapf(err, "listing %s", dir)
	}
	if delErr != nil {
		return delErr
	}
	if len(batch) > 0 {
		return s.deleteBatch(ctx, batch)
	}
	return nil
}

func (s *Store) deleteBatch(ctx context.Context, objs []*s3.ObjectIdentifier) error {
	out, err := s.svc.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &s3.Delete{Objects: objs, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return errors.Wrap(err, "deleting objects")
	}
	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return errors.Errorf("deleting %s: %s (%d failed)", aws.StringValue(e.Key), aws.StringValue(e.Message), len(out.Errors))
	}
	return nil
}

// Put uploads body to key.
func (s *Store) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   body,
	})
	return errors.Wrapf(err, "uploading %s", key)
}

// Root returns the URL the store writes under.
func (s *Store) Root() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}
