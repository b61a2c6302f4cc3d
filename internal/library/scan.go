package library

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"squish/internal/logging"
	"squish/internal/media/ffprobe"
	"squish/internal/services"
)

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".m4v": {}, ".mov": {}, ".avi": {}, ".webm": {}, ".ts": {}, ".wmv": {},
}

// fingerprintWindow is the number of bytes hashed from each end of the file.
const fingerprintWindow = 1 << 20

// Scanner ingests video files under the media root into the store by probing
// them with ffprobe.
type Scanner struct {
	store      *Store
	ffprobeBin string
	logger     *slog.Logger
}

// NewScanner constructs a Scanner.
func NewScanner(store *Store, ffprobeBin string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{store: store, ffprobeBin: ffprobeBin, logger: logger.With(logging.String(logging.FieldComponent, "library"))}
}

// Scan walks the media root and probes any video file not yet known. Files
// whose content fingerprint matches an existing item are treated as renames:
// the stored path is updated and no new item is created.
func (s *Scanner) Scan(ctx context.Context, root string) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		item, fresh, err := s.ingest(ctx, path)
		if err != nil {
			s.logger.Warn("skipping unprobeable file",
				logging.String("path", path),
				logging.Error(err),
			)
			return nil
		}
		if fresh {
			added++
			s.logger.Info("media item added",
				logging.String(logging.FieldMediaID, item.ID),
				logging.String("path", item.Path),
				logging.String("video_codec", item.VideoCodec),
				logging.Int("height", item.Height),
			)
		}
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("scan media root: %w", err)
	}
	return added, nil
}

// Ingest probes a single file and stores it, returning the item.
func (s *Scanner) Ingest(ctx context.Context, path string) (*MediaItem, error) {
	item, _, err := s.ingest(ctx, path)
	return item, err
}

func (s *Scanner) ingest(ctx context.Context, path string) (*MediaItem, bool, error) {
	fingerprint, size, err := Fingerprint(path)
	if err != nil {
		return nil, false, services.Wrap(services.ErrProbe, "library", "fingerprint", path, err)
	}

	if existing, err := s.store.FindByFingerprint(ctx, fingerprint); err == nil && existing != nil {
		if existing.Path != path {
			existing.Path = path
			if err := s.store.Put(ctx, existing); err != nil {
				return nil, false, err
			}
			s.logger.Debug("media item rename detected",
				logging.String(logging.FieldMediaID, existing.ID),
				logging.String("path", path),
			)
		}
		return existing, false, nil
	}

	result, err := ffprobe.Inspect(ctx, s.ffprobeBin, path)
	if err != nil {
		return nil, false, services.Wrap(services.ErrProbe, "library", "inspect", path, err)
	}
	video, ok := result.VideoStream()
	if !ok {
		return nil, false, services.Wrap(services.ErrProbe, "library", "inspect", "no video stream", nil)
	}

	item := &MediaItem{
		ID:          uuid.NewString(),
		Path:        path,
		Title:       titleFromPath(path),
		Kind:        kindFromPath(path),
		Container:   result.Format.FormatName,
		VideoCodec:  strings.ToLower(video.CodecName),
		Width:       video.Width,
		Height:      video.Height,
		Duration:    result.DurationSeconds(),
		BitRate:     result.BitRate(),
		Size:        size,
		Fingerprint: fingerprint,
	}
	if audio, ok := result.AudioStream(); ok {
		item.AudioCodec = strings.ToLower(audio.CodecName)
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// Fingerprint hashes the file size plus a window from each end of the file.
// Content identity survives renames while staying cheap for large media.
func Fingerprint(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(info.Size()))
	hasher.Write(sizeBuf[:])

	if _, err := io.CopyN(hasher, file, fingerprintWindow); err != nil && err != io.EOF {
		return "", 0, err
	}
	if info.Size() > 2*fingerprintWindow {
		if _, err := file.Seek(-fingerprintWindow, io.SeekEnd); err != nil {
			return "", 0, err
		}
		if _, err := io.Copy(hasher, file); err != nil {
			return "", 0, err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), info.Size(), nil
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.TrimSpace(strings.ReplaceAll(base, ".", " "))
	if cleaned == "" {
		return filepath.Base(path)
	}
	return cleaned
}

var episodePattern = regexp.MustCompile(`(?i)s\d{1,2}e\d{1,3}|\bseason\b|\bepisode\b`)

func kindFromPath(path string) Kind {
	if episodePattern.MatchString(path) {
		return KindEpisode
	}
	return KindMovie
}
