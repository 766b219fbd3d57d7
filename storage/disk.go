package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"linkup/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DiskStore keeps uploaded images on the local filesystem and serves them under baseURL.
// It is the object storage used when no Cloudinary account is configured.
type DiskStore struct {
	root    string
	baseURL string
	log     *slog.Logger
}

func NewDiskStore(root, baseURL string, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create upload directory: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), log: log}, nil
}

func (d *DiskStore) Root() string { return d.root }

// Upload writes the payload as {root}/{folder}/{uuid}{ext} and returns its public URL.
// Images are stored as received, resizing is left to Cloudinary.
func (d *DiskStore) Upload(ctx context.Context, img domain.ImageUpload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := ".bin"
	if m := mimetype.Lookup(string(img.MIME)); m != nil {
		ext = m.Extension()
	}
	folder := filepath.Base(img.Folder)
	dir := filepath.Join(d.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), img.Data, 0o644); err != nil {
		return "", err
	}
	d.log.Debug("Image stored on disk", "folder", folder, "name", name, "size", len(img.Data))
	return fmt.Sprintf("%s/%s/%s", d.baseURL, folder, name), nil
}
