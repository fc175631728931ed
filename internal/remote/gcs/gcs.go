// Package gcs stores history snapshots as JSON objects in a Cloud Storage
// bucket, one object per dateKey at <prefix>/<dateKey>.json.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"tkpay/internal/core"
	"tkpay/internal/remote"
)

const (
	objectSuffix   = ".json"
	maxParallelGet = 8
	requestTimeout = 30 * time.Second
)

// objectStore is the slice of bucket behaviour the store relies on.
type objectStore interface {
	write(ctx context.Context, name string, data []byte) error
	read(ctx context.Context, name string) ([]byte, error)
	remove(ctx context.Context, name string) error
	list(ctx context.Context, prefix string) ([]string, error)
}

type Store struct {
	objects objectStore
	prefix  string
	closeFn func() error
}

var _ remote.Store = (*Store)(nil)

// New connects to bucket and verifies it is reachable. Credentials come from
// Application Default Credentials unless opts say otherwise.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	bkt := client.Bucket(bucket)
	checkCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if _, err := bkt.Attrs(checkCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("access bucket %s: %w", bucket, err)
	}

	s := newStore(bucketObjects{bkt: bkt}, prefix)
	s.closeFn = client.Close
	return s, nil
}

func newStore(objects objectStore, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = remote.Namespace
	}
	return &Store{objects: objects, prefix: prefix}
}

func (s *Store) objectName(dateKey string) string {
	return path.Join(s.prefix, dateKey+objectSuffix)
}

func (s *Store) Put(ctx context.Context, snap core.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Date, err)
	}
	if err := s.objects.write(ctx, s.objectName(snap.Date), data); err != nil {
		return fmt.Errorf("write %s: %w", remote.Key(snap.Date), err)
	}
	return nil
}

func (s *Store) GetAll(ctx context.Context) ([]core.Snapshot, error) {
	names, err := s.objects.list(ctx, s.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.prefix, err)
	}

	// Only direct children of the prefix are snapshots.
	var keep []string
	for _, name := range names {
		if path.Dir(name) == s.prefix && strings.HasSuffix(name, objectSuffix) {
			keep = append(keep, name)
		}
	}

	read := make([]*core.Snapshot, len(keep))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGet)
	for i, name := range keep {
		g.Go(func() error {
			data, err := s.objects.read(gctx, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			var snap core.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			if snap.Date == "" {
				snap.Date = strings.TrimSuffix(path.Base(name), objectSuffix)
			}
			if err := snap.Validate(); err != nil {
				slog.WarnContext(gctx, "Skipping invalid snapshot object", "object", name, "error", err)
				return nil
			}
			read[i] = &snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]core.Snapshot, 0, len(read))
	for _, snap := range read {
		if snap != nil {
			out = append(out, *snap)
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, dateKey string) error {
	if err := s.objects.remove(ctx, s.objectName(dateKey)); err != nil {
		return fmt.Errorf("delete %s: %w", remote.Key(dateKey), err)
	}
	return nil
}

func (s *Store) Available() bool { return true }

func (s *Store) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

type bucketObjects struct {
	bkt *storage.BucketHandle
}

func (b bucketObjects) write(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	w := b.bkt.Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b bucketObjects) read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bkt.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b bucketObjects) remove(ctx context.Context, name string) error {
	err := b.bkt.Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b bucketObjects) list(ctx context.Context, prefix string) ([]string, error) {
	it := b.bkt.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		// With a delimiter, nested "directories" come back as bare prefixes.
		if attrs.Name == "" {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
