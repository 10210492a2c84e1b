package facility

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/generic"
)

// ProjectPhoto is one image attached to a project.
type ProjectPhoto struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	PhotoPath   string    `json:"photo_path"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p ProjectPhoto) Validate() error {
	if p.ProjectID <= 0 {
		return generic.Invalid("project_photo", "project_id", "required")
	}
	if strings.TrimSpace(p.PhotoPath) == "" {
		return generic.Invalid("project_photo", "photo_path", "required")
	}
	return nil
}

func (p ProjectPhoto) Record() generic.Record {
	return generic.Record{
		"project_id":  p.ProjectID,
		"photo_path":  p.PhotoPath,
		"description": p.Description,
	}
}

func ProjectPhotoFromRecord(r generic.Record) ProjectPhoto {
	return ProjectPhoto{
		ID:          r.Int64("id"),
		ProjectID:   r.Int64("project_id"),
		PhotoPath:   r.String("photo_path"),
		Description: r.String("description"),
		CreatedAt:   r.Time("created_at"),
	}
}

// =============================================================================
// PHOTO IMPORT - Copy image files into the photo directory and register them
// =============================================================================

// PhotoRegistry is the part of the store the importer needs.
type PhotoRegistry interface {
	AddProjectPhoto(ctx context.Context, photo ProjectPhoto) (int64, error)
}

// ImageExtensions lists the accepted file extensions, lower case.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
}

// IsImage reports whether name has an accepted extension.
func IsImage(name string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(name))]
}

// PhotoImporter copies photos to <Dir>/project_photos/<project id>/ under a
// fresh file name and registers each copy with the project. The original
// file name is kept as the description.
type PhotoImporter struct {
	Dir      string
	MaxBatch int
	Registry PhotoRegistry
	Logger   *zap.Logger
}

// ImportResult reports the outcome for one source file.
type ImportResult struct {
	Source string        `json:"source"`
	Photo  *ProjectPhoto `json:"photo,omitempty"`
	Err    string        `json:"error,omitempty"`
}

// ProjectDir returns the directory photos of a project are copied to.
func (im *PhotoImporter) ProjectDir(projectID int64) string {
	return filepath.Join(im.Dir, "project_photos", fmt.Sprint(projectID))
}

// Import copies and registers each file. Files that are not images or fail
// to copy are reported in the results and skipped; a registry failure stops
// the batch and removes the copy that could not be registered.
func (im *PhotoImporter) Import(ctx context.Context, projectID int64, files []string) ([]ImportResult, error) {
	if projectID <= 0 {
		return nil, generic.Invalid("project_photo", "project_id", "required")
	}
	if im.MaxBatch > 0 && len(files) > im.MaxBatch {
		return nil, generic.Invalid("project_photo", "files", "at most %d files per import, got %d", im.MaxBatch, len(files))
	}

	dir := im.ProjectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo directory: %w", err)
	}

	results := make([]ImportResult, 0, len(files))
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := ImportResult{Source: src}
		if !IsImage(src) {
			res.Err = "not an image file"
			results = append(results, res)
			continue
		}

		dest := im.destination(dir, src)
		if err := copyFile(src, dest); err != nil {
			res.Err = err.Error()
			results = append(results, res)
			continue
		}

		photo, err := im.register(ctx, projectID, dest, src)
		if err != nil {
			return results, err
		}
		res.Photo = photo
		results = append(results, res)
	}
	return results, nil
}

// Save writes one uploaded image under a fresh file name and registers it.
// name is the client's file name; only its extension and base name are used.
func (im *PhotoImporter) Save(ctx context.Context, projectID int64, name string, r io.Reader) (*ProjectPhoto, error) {
	if projectID <= 0 {
		return nil, generic.Invalid("project_photo", "project_id", "required")
	}
	if !IsImage(name) {
		return nil, generic.Invalid("project_photo", "file", "%s is not an image file", filepath.Base(name))
	}

	dir := im.ProjectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo directory: %w", err)
	}
	dest := im.destination(dir, name)
	if err := writeFile(dest, r); err != nil {
		return nil, err
	}
	return im.register(ctx, projectID, dest, name)
}

func (im *PhotoImporter) destination(dir, name string) string {
	return filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
}

// register records a copied file, removing it when the store refuses.
func (im *PhotoImporter) register(ctx context.Context, projectID int64, dest, source string) (*ProjectPhoto, error) {
	photo := ProjectPhoto{ProjectID: projectID, PhotoPath: dest, Description: filepath.Base(source)}
	id, err := im.Registry.AddProjectPhoto(ctx, photo)
	if err != nil {
		_ = os.Remove(dest)
		return nil, err
	}
	photo.ID = id

	if im.Logger != nil {
		im.Logger.Debug("photo imported",
			zap.Int64("project_id", projectID),
			zap.String("source", source),
			zap.String("path", dest))
	}
	return &photo, nil
}

// Remove deletes a photo file previously imported. A missing file is not an
// error.
func (im *PhotoImporter) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dest, in)
}

func writeFile(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
