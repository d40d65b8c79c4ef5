package storageutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// CompressedExtension marks objects stored lz4 compressed.
const CompressedExtension = ".lz4"

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

// OpenBucket opens the bucket at location, either a bucket URL (file://,
// gs://, mem://) or a path to a local directory.
func OpenBucket(ctx context.Context, location string) (*blob.Bucket, error) {
	if !strings.Contains(location, "://") {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, err
		}
		location = "file://" + filepath.ToSlash(abs)
		if !strings.HasPrefix(location, "file:///") {
			location = "file:///" + strings.TrimPrefix(location, "file://")
		}
	}
	b, err := blob.OpenBucket(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", location, err)
	}
	return b, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error {
	return r.closer.Close()
}

// NewReader opens the object named key, decompressing it when its name
// ends with CompressedExtension. If the object doesn't exist, it returns
// ErrObjectNotFound.
func NewReader(ctx context.Context, b *blob.Bucket, key string) (io.ReadCloser, error) {
	or, err := b.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, err
	}
	if !strings.HasSuffix(key, CompressedExtension) {
		return or, nil
	}
	return readCloser{Reader: lz4.NewReader(or), closer: or}, nil
}

// List returns the keys of the objects directly under prefix, sorted.
func List(ctx context.Context, b *blob.Bucket, prefix string) ([]string, error) {
	var keys []string
	it := b.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// CompressedWrite compresses and writes data to the bucket.
func CompressedWrite(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ow, err := b.NewWriter(ctx, objectName, nil)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	jw := json.NewEncoder(zw)
	err = jw.Encode(d)
	if err != nil {
		_ = ow.Close()
		return err
	}
	err = zw.Close()
	if err != nil {
		_ = ow.Close()
		return err
	}
	return ow.Close()
}

// UnmarshalCompressed reads compressed JSON data from the bucket and
// unmarshals it.
func UnmarshalCompressed(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	or, err := b.NewReader(ctx, objectName, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%s: %w", objectName, ErrObjectNotFound)
		}
		return err
	}
	defer or.Close()
	zr := lz4.NewReader(or)
	return json.NewDecoder(zr).Decode(d)
}
