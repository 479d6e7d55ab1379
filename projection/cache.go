package projection

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/alDuncanson/dupescope/fileutil"
	"github.com/alDuncanson/dupescope/logging"
)

// CacheEntry is the on-disk projection cache document. RecordCount and
// ContentHash guard against reusing a projection computed for other input;
// documents written without them are checked by array length only.
type CacheEntry struct {
	Coords2D    [][]float64 `json:"coords2d"`
	Coords3D    [][]float64 `json:"coords3d"`
	RecordCount *int        `json:"record_count,omitempty"`
	ContentHash string      `json:"content_hash,omitempty"`
}

// Projection returns the coordinate arrays of the entry.
func (e *CacheEntry) Projection() *Projection {
	return &Projection{Coords2D: e.Coords2D, Coords3D: e.Coords3D}
}

// Matches reports whether the entry can be trusted for vectors.
func (e *CacheEntry) Matches(vectors [][]float32) bool {
	n := len(vectors)
	if len(e.Coords2D) != n || len(e.Coords3D) != n {
		return false
	}
	if e.RecordCount != nil && *e.RecordCount != n {
		return false
	}
	if e.ContentHash != "" && e.ContentHash != ContentHash(vectors) {
		return false
	}
	return true
}

// LoadCache reads the cache document at path.
func LoadCache(path string) (*CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode projection cache %s: %w", path, err)
	}
	return &entry, nil
}

// SaveCache writes proj to path together with the guard fields for vectors.
// The document is written to a temporary file and renamed into place.
func SaveCache(path string, proj *Projection, vectors [][]float32) error {
	count := len(vectors)
	entry := CacheEntry{
		Coords2D:    proj.Coords2D,
		Coords3D:    proj.Coords3D,
		RecordCount: &count,
		ContentHash: ContentHash(vectors),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode projection cache: %w", err)
	}
	return fileutil.WriteAtomic(path, data, 0o644)
}

// ContentHash is the hex SHA-256 of every vector's length and float bits.
func ContentHash(vectors [][]float32) string {
	hash := sha256.New()
	var buf [4]byte
	for _, vec := range vectors {
		binary.LittleEndian.PutUint32(buf[:], uint32(len(vec)))
		hash.Write(buf[:])
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			hash.Write(buf[:])
		}
	}
	return hex.EncodeToString(hash.Sum(nil))
}

const lockRetryDelay = 200 * time.Millisecond

// ReduceCached returns the cached projection at path when it matches vectors,
// and otherwise reduces them and stores the result there. force skips the
// lookup. Runs against the same path are serialized through path+".lock".
// The boolean result reports a cache hit.
func ReduceCached(ctx context.Context, path string, force bool, vectors [][]float32, config ReduceConfig, logger *logging.Logger) (*Projection, bool, error) {
	if err := CheckDimensions(vectors); err != nil {
		return nil, false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, false, fmt.Errorf("lock projection cache: %w", err)
	}
	if !locked {
		return nil, false, fmt.Errorf("lock projection cache: %s is held by another run", path)
	}
	defer lock.Unlock()

	if !force {
		entry, err := LoadCache(path)
		switch {
		case err == nil && entry.Matches(vectors):
			logger.Info("Using cached projection from %s", path)
			return entry.Projection(), true, nil
		case err == nil:
			logger.Warn("Projection cache %s was built from different input, recomputing", path)
		case os.IsNotExist(err):
			logger.Debug("No projection cache at %s", path)
		default:
			logger.Warn("Ignoring unreadable projection cache: %v", err)
		}
	}

	proj, err := Reduce(ctx, vectors, config)
	if err != nil {
		return nil, false, err
	}

	if err := SaveCache(path, proj, vectors); err != nil {
		return nil, false, err
	}
	logger.Info("Saved projection for %d records to %s", proj.Len(), path)

	return proj, false, nil
}
