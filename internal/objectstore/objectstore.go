// Package objectstore implements the object-store client: put (with
// multipart upload over a size threshold), delete (soft, via a
// versioned bucket's delete marker), restore-from-delete, list, get
// (with fan-out to multiple destinations), and permanent purge.
//
// It is backed by cloud.google.com/go/storage with bucket versioning
// enabled; GCS object generations play the role the reference design's
// S3 object versions play, and a noncurrent generation is the
// equivalent of an S3 delete marker.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const (
	// multipartThreshold is the file size above which Put switches to a
	// chunked, composed upload instead of a single streamed write.
	multipartThreshold = 100 * 1024 * 1024 // 100 MiB

	// minChunkSize is the minimum chunk size for a multipart upload.
	minChunkSize = 5 * 1024 * 1024 // 5 MiB

	// maxChunks bounds how many chunks a single multipart upload may use.
	maxChunks = 10000

	// maxObjectSize is the largest file Put will accept.
	maxObjectSize = 5 * 1024 * 1024 * 1024 * 1024 // 5 TiB
)

// ErrObjectTooLarge is returned by Put when the source file exceeds
// maxObjectSize.
var ErrObjectTooLarge = errors.New("objectstore: file exceeds 5 TiB limit")

// Store wraps a single GCS bucket handle.
type Store struct {
	bucket *storage.BucketHandle
}

// New wraps an already-constructed *storage.Client's handle on
// bucketName. Credential resolution (ADC, service account file, etc) is
// the caller's concern, mirroring the client-construction style used by
// other object-store clients in the reference examples.
func New(client *storage.Client, bucketName string) *Store {
	return &Store{bucket: client.Bucket(bucketName)}
}

// Put uploads the file at path under key. Files at or below
// multipartThreshold are written with a single resumable Writer;
// larger files are split into ≥5 MiB chunks (at most 10,000 of them),
// uploaded as temporary staging objects, and finalized with a compose
// call — the GCS-idiomatic analogue of S3's multipart upload API.
func (s *Store) Put(ctx context.Context, key, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("objectstore: stat %s: %w", path, err)
	}

	if info.Size() > maxObjectSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, path, info.Size())
	}

	if info.Size() <= multipartThreshold {
		return s.putWhole(ctx, key, path)
	}

	return s.putMultipart(ctx, key, path, info.Size())
}

func (s *Store) putWhole(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", path, err)
	}
	defer f.Close()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("objectstore: finalize put %s: %w", key, err)
	}

	return nil
}

// chunkSize picks a chunk size that keeps the chunk count at or below
// maxChunks while respecting the minChunkSize floor.
func chunkSize(fileSize int64) int64 {
	size := int64(minChunkSize)

	for (fileSize+size-1)/size > maxChunks {
		size *= 2
	}

	return size
}

func (s *Store) putMultipart(ctx context.Context, key, path string, fileSize int64) error {
	size := chunkSize(fileSize)

	numChunks := fileSize / size
	if fileSize%size != 0 {
		numChunks++
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", path, err)
	}
	defer f.Close()

	parts := make([]*storage.ObjectHandle, 0, numChunks)

	for part := int64(0); part < numChunks; part++ {
		offset := part * size
		length := size
		if offset+length > fileSize {
			length = fileSize - offset
		}

		partKey := fmt.Sprintf("%s.part%06d", key, part)

		if err := s.putChunk(ctx, partKey, f, offset, length); err != nil {
			s.cleanupParts(ctx, parts)
			return fmt.Errorf("objectstore: upload chunk %d of %s: %w", part, key, err)
		}

		parts = append(parts, s.bucket.Object(partKey))
	}

	if err := s.composeParts(ctx, key, parts); err != nil {
		s.cleanupParts(ctx, parts)
		return fmt.Errorf("objectstore: compose %s: %w", key, err)
	}

	s.cleanupParts(ctx, parts)

	return nil
}

func (s *Store) putChunk(ctx context.Context, partKey string, f *os.File, offset, length int64) error {
	section := io.NewSectionReader(f, offset, length)

	w := s.bucket.Object(partKey).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, section); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

// composeParts finalizes a multipart upload. GCS compose accepts at
// most 32 sources per call, so parts are composed in a tree reduction
// (up to 32 sources per node) of intermediate objects down to the final
// key.
func (s *Store) composeParts(ctx context.Context, key string, parts []*storage.ObjectHandle) error {
	const maxComposeSources = 32

	current := parts
	tmpCounter := 0

	for len(current) > 1 {
		var next []*storage.ObjectHandle

		for i := 0; i < len(current); i += maxComposeSources {
			end := i + maxComposeSources
			if end > len(current) {
				end = len(current)
			}

			batch := current[i:end]

			var dest *storage.ObjectHandle
			if len(next) == 0 && end == len(current) {
				dest = s.bucket.Object(key)
			} else {
				tmpCounter++
				dest = s.bucket.Object(fmt.Sprintf("%s.compose%06d", key, tmpCounter))
			}

			if _, err := dest.ComposerFrom(batch...).Run(ctx); err != nil {
				return err
			}

			next = append(next, dest)
		}

		current = next
	}

	if len(current) == 1 && current[0].ObjectName() != key {
		if _, err := s.bucket.Object(key).ComposerFrom(current[0]).Run(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) cleanupParts(ctx context.Context, parts []*storage.ObjectHandle) {
	for _, p := range parts {
		_ = p.Delete(ctx)
	}
}

// Delete creates a delete marker: with bucket versioning enabled,
// deleting the live (unversioned) object handle hides it while the
// prior generation is retained as a noncurrent version, recoverable
// until the lifecycle rule purges it.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}

	return nil
}

// RestoreFromDelete ("undelete") finds the most recent noncurrent
// generation of key and copies it back onto the live object name. If no
// noncurrent generation exists, the caller should fall back to Put
// (per §4.2's tie-break rule); this function reports that case via
// ErrNoDeletedVersion.
var ErrNoDeletedVersion = errors.New("objectstore: no deleted version to restore")

func (s *Store) RestoreFromDelete(ctx context.Context, key string) error {
	gen, err := s.latestNoncurrentGeneration(ctx, key)
	if err != nil {
		return err
	}

	src := s.bucket.Object(key).Generation(gen)
	dst := s.bucket.Object(key)

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return fmt.Errorf("objectstore: restore %s generation %d: %w", key, gen, err)
	}

	return nil
}

func (s *Store) latestNoncurrentGeneration(ctx context.Context, key string) (int64, error) {
	it := s.bucket.Objects(ctx, &storage.Query{
		Prefix:   key,
		Versions: true,
	})

	var (
		best     int64
		bestTime int64
		found    bool
	)

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return 0, fmt.Errorf("objectstore: list versions of %s: %w", key, err)
		}

		if attrs.Name != key {
			continue
		}

		unix := attrs.Updated.Unix()
		if !found || unix > bestTime {
			best = attrs.Generation
			bestTime = unix
			found = true
		}
	}

	if !found {
		return 0, ErrNoDeletedVersion
	}

	return best, nil
}

// ObjectStat is one entry of a List() result.
type ObjectStat struct {
	Key          string
	LastModified int64
}

// List enumerates every live (current-generation) key and its last
// modified time, paginated by the underlying GCS iterator.
func (s *Store) List(ctx context.Context) (map[string]ObjectStat, error) {
	out := make(map[string]ObjectStat)

	it := s.bucket.Objects(ctx, nil)

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("objectstore: list: %w", err)
		}

		out[attrs.Name] = ObjectStat{Key: attrs.Name, LastModified: attrs.Updated.Unix()}
	}

	return out, nil
}

// Get downloads key once and duplicates the bytes to every destination
// path, creating parent directories as needed. Used by the restore
// engine, which fans a single hash out to every referencing path.
func (s *Store) Get(ctx context.Context, key string, destinations []string) error {
	if len(destinations) == 0 {
		return nil
	}

	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("objectstore: open reader %s: %w", key, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("objectstore: read %s: %w", key, err)
	}

	for _, dest := range destinations {
		if err := writeFile(dest, buf.Bytes()); err != nil {
			return fmt.Errorf("objectstore: write %s: %w", dest, err)
		}
	}

	return nil
}

func writeFile(path string, data []byte) error {
	if dir := parentDir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0o644)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}

	return ""
}

// PermanentlyDeleteAll enumerates every generation of key and deletes
// them all, used by the backup-purge ("delete-backup") command.
func (s *Store) PermanentlyDeleteAll(ctx context.Context, key string) error {
	it := s.bucket.Objects(ctx, &storage.Query{
		Prefix:   key,
		Versions: true,
	})

	var generations []int64

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return fmt.Errorf("objectstore: list versions of %s: %w", key, err)
		}

		if attrs.Name != key {
			continue
		}

		generations = append(generations, attrs.Generation)
	}

	sort.Slice(generations, func(i, j int) bool { return generations[i] < generations[j] })

	for _, gen := range generations {
		if err := s.bucket.Object(key).Generation(gen).Delete(ctx); err != nil {
			return fmt.Errorf("objectstore: purge %s generation %d: %w", key, gen, err)
		}
	}

	return nil
}
