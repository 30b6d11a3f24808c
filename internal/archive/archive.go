// Package archive copies finished meeting artifacts to long-term storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Provider stores a local file under a slash-separated key and returns
// the location it was written to.
type Provider interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Name() string
}

// ErrNoArtifacts is returned when a meeting folder has nothing to archive.
var ErrNoArtifacts = errors.New("no artifacts to archive")

// Archiver uploads the artifacts of a meeting folder.
type Archiver struct {
	Provider Provider
	Logger   *zap.Logger
}

// Artifacts are the file names archived from a meeting folder, when present.
var Artifacts = []string{"recording.wav", "transcript.md", "summary.md"}

// Meeting uploads every artifact in dir under the key prefix
// <base name of dir>/. It returns the location of the folder.
func (a *Archiver) Meeting(ctx context.Context, dir string) (string, error) {
	return a.Files(ctx, dir, Artifacts...)
}

// Files uploads the named files of a meeting folder, skipping the ones
// that do not exist.
func (a *Archiver) Files(ctx context.Context, dir string, names ...string) (string, error) {
	log := a.Logger
	if log == nil {
		log = zap.NewNop()
	}
	folder := filepath.Base(dir)

	var (
		errs     error
		uploaded int
		location string
	)
	for _, name := range names {
		src := filepath.Join(dir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		loc, err := a.Provider.Upload(ctx, src, folder+"/"+name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("archiving %s: %w", name, err))
			continue
		}
		uploaded++
		location = loc
		log.Debug("artifact archived", zap.String("file", name), zap.String("location", loc))
	}
	if errs != nil {
		return "", errs
	}
	if uploaded == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoArtifacts, dir)
	}
	// location of the folder rather than the last file
	location = location[:len(location)-len(filepath.Base(location))]
	log.Info("meeting archived",
		zap.String("provider", a.Provider.Name()),
		zap.String("location", location),
		zap.Int("files", uploaded))
	return location, nil
}
