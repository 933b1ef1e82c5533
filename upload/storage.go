package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lithammer/shortuuid/v4"
	"github.com/oklog/ulid/v2"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"prismflow/config"
)

// Storage writes uploads to the upload directory and registers them.
type Storage struct {
	dir         string
	maxSize     int64
	minFreeDisk int64
	lifetime    time.Duration
	registry    *Registry
	logger      *logrus.Entry

	usage func(path string) (*disk.UsageStat, error)
	now   func() time.Time
}

func NewStorage(cfg *config.Config, registry *Registry, logger *logrus.Entry) (*Storage, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Storage{
		dir:         cfg.UploadDir,
		maxSize:     cfg.MaxUploadSize,
		minFreeDisk: cfg.ThrottleFreeDisk,
		lifetime:    cfg.UploadLifetime,
		registry:    registry,
		logger:      logger.WithField("svc", "upload.Storage"),
		usage:       disk.Usage,
		now:         time.Now,
	}, nil
}

// Dir returns the upload directory.
func (s *Storage) Dir() string { return s.dir }

// Save validates fh, copies it into the upload directory and registers it.
func (s *Storage) Save(fh *multipart.FileHeader) (File, error) {
	if fh == nil {
		return File{}, fmt.Errorf("no file uploaded: %w", ErrInvalidUpload)
	}

	declared := fh.Header.Get("Content-Type")
	if !isVideo(declared) {
		return File{}, fmt.Errorf("only video files are accepted, got %q: %w", declared, ErrInvalidUpload)
	}
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return File{}, fmt.Errorf("file size %d exceeds limit of %d bytes: %w", fh.Size, s.maxSize, ErrTooLarge)
	}
	if err := s.checkFreeDisk(); err != nil {
		return File{}, err
	}

	filename := fmt.Sprintf("video-%s%s", ulid.Make().String(), strings.ToLower(filepath.Ext(fh.Filename)))
	path := filepath.Join(s.dir, filename)

	written, err := s.writeFile(fh, path)
	if err != nil {
		os.Remove(path)
		return File{}, err
	}

	contentType := declared
	if mt, err := mimetype.DetectFile(path); err == nil && isVideo(mt.String()) {
		contentType = mt.String()
	}

	now := s.now()
	f := File{
		ID:           fmt.Sprintf("file_%s_%d", shortuuid.New(), now.Unix()),
		OriginalName: filepath.Base(fh.Filename),
		Filename:     filename,
		Path:         path,
		Size:         written,
		ContentType:  contentType,
		UploadTime:   now,
	}
	s.registry.Add(f)

	s.logger.WithFields(logrus.Fields{
		"file_id":  f.ID,
		"name":     f.OriginalName,
		"size":     f.Size,
		"mimetype": f.ContentType,
	}).Info("File uploaded")

	return f, nil
}

func (s *Storage) writeFile(fh *multipart.FileHeader, path string) (int64, error) {
	src, err := fh.Open()
	if err != nil {
		return 0, fmt.Errorf("could not open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("could not create stored file: %w", err)
	}
	defer dst.Close()

	var r io.Reader = src
	if s.maxSize > 0 {
		// Use a LimitedReader to enforce max upload size
		r = &io.LimitedReader{R: src, N: s.maxSize + 1}
	}
	written, err := io.Copy(dst, r)
	if err != nil {
		return 0, fmt.Errorf("failed to write uploaded file: %w", err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		return 0, fmt.Errorf("file size exceeds limit of %d bytes: %w", s.maxSize, ErrTooLarge)
	}
	return written, dst.Close()
}

// checkFreeDisk verifies that the upload directory has enough free space.
func (s *Storage) checkFreeDisk() error {
	if s.minFreeDisk <= 0 {
		return nil
	}

	d, err := s.usage(s.dir)
	if err != nil {
		s.logger.Warningf("Could not get disk usage for %s: %v", s.dir, err)
		return nil
	}
	if d.Free < uint64(s.minFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d: %w", d.Free, s.minFreeDisk, ErrInsufficientStorage)
	}
	return nil
}

// FreeDisk returns the free bytes on the upload directory's filesystem.
func (s *Storage) FreeDisk() (uint64, error) {
	d, err := s.usage(s.dir)
	if err != nil {
		return 0, err
	}
	return d.Free, nil
}

// Sweep removes every upload older than maxAge from disk and the registry.
// It returns the removed file ids.
func (s *Storage) Sweep(maxAge time.Duration, now time.Time) []string {
	var removed []string
	for _, f := range s.registry.List() {
		if now.Sub(f.UploadTime) <= maxAge {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Warningf("Could not remove upload %s: %v", f.Path, err)
			continue
		}
		s.registry.Remove(f.ID)
		removed = append(removed, f.ID)
	}
	if len(removed) > 0 {
		s.logger.Infof("Removed %d expired uploads", len(removed))
	}
	return removed
}

// Run periodically sweeps expired uploads until ctx is done. It is a no-op
// loop when no upload lifetime is configured.
func (s *Storage) Run(ctx context.Context) error {
	if s.lifetime <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.lifetime / 4) // Check 4 times per lifetime
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Upload sweeper shutting down")
			return nil
		case <-ticker.C:
			s.Sweep(s.lifetime, s.now())
		}
	}
}

func isVideo(contentType string) bool {
	return strings.HasPrefix(contentType, "video/")
}
