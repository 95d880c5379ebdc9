// Package modelstore persists trained model packages to disk as JSON
// artifacts, in either a single-file package layout or a five-file
// component layout. The layouts are not cross-compatible.
package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Sentinel errors. An absent artifact is routine (train first); a
// present but undecodable artifact is not.
var (
	ErrNotFound = errors.New("model artifact not found")
	ErrCorrupt  = errors.New("model artifact corrupt")
)

// Mode selects the on-disk layout.
type Mode string

const (
	// ModePackage stores the whole package as one JSON file.
	ModePackage Mode = "package"

	// ModeComponent stores model, scaler, encoders, feature names,
	// and metadata as separate files.
	ModeComponent Mode = "component"
)

// Artifact file names.
const (
	packageFile      = "model_package.json"
	modelFile        = "model.json"
	scalerFile       = "scaler.json"
	encodersFile     = "encoders.json"
	featureNamesFile = "feature_names.json"
	metadataFile     = "metadata.json"
)

// metadata is the component-mode descriptor. It carries everything not
// held by the other four files.
type metadata struct {
	ModelName    string                         `json:"modelName"`
	ModelType    string                         `json:"modelType"`
	Metrics      map[string]domain.ModelMetrics `json:"metrics"`
	Timestamp    string                         `json:"timestamp"`
	FeatureCount int                            `json:"featureCount"`
}

// Store reads and writes model artifacts under a single directory.
type Store struct {
	dir    string
	mode   Mode
	logger *slog.Logger
}

// New creates a store. The directory is created on first save.
func New(dir string, mode Mode, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("modelstore: directory is required")
	}
	switch mode {
	case ModePackage, ModeComponent:
	default:
		return nil, fmt.Errorf("modelstore: unknown mode %q", mode)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, mode: mode, logger: logger}, nil
}

// Save writes the package to disk, replacing any previous artifacts.
func (s *Store) Save(pkg *domain.ModelPackage) error {
	if pkg == nil {
		return fmt.Errorf("modelstore: nil package")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("modelstore: create directory: %w", err)
	}

	var err error
	if s.mode == ModePackage {
		err = s.writeJSON(packageFile, pkg)
	} else {
		err = s.saveComponents(pkg)
	}
	if err != nil {
		return err
	}

	s.logger.Info("model saved",
		"dir", s.dir,
		"mode", string(s.mode),
		"model", pkg.ModelName,
		"timestamp", pkg.Timestamp,
	)
	return nil
}

func (s *Store) saveComponents(pkg *domain.ModelPackage) error {
	parts := []struct {
		name string
		v    any
	}{
		{modelFile, pkg.Model},
		{scalerFile, pkg.Scaler},
		{encodersFile, pkg.Encoders},
		{featureNamesFile, pkg.FeatureNames},
		{metadataFile, metadata{
			ModelName:    pkg.ModelName,
			ModelType:    pkg.ModelType,
			Metrics:      pkg.Metrics,
			Timestamp:    pkg.Timestamp,
			FeatureCount: len(pkg.FeatureNames),
		}},
	}
	for _, part := range parts {
		if err := s.writeJSON(part.name, part.v); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the package back. A missing primary artifact returns
// ErrNotFound; anything present but undecodable, or a partial
// component set, returns ErrCorrupt.
func (s *Store) Load() (*domain.ModelPackage, error) {
	if s.mode == ModePackage {
		var pkg domain.ModelPackage
		if err := s.readJSON(packageFile, &pkg, true); err != nil {
			return nil, err
		}
		return &pkg, nil
	}
	return s.loadComponents()
}

func (s *Store) loadComponents() (*domain.ModelPackage, error) {
	pkg := &domain.ModelPackage{}
	var meta metadata

	if err := s.readJSON(modelFile, &pkg.Model, true); err != nil {
		return nil, err
	}
	// Once the primary artifact exists, the rest must too.
	if err := s.readJSON(scalerFile, &pkg.Scaler, false); err != nil {
		return nil, err
	}
	if err := s.readJSON(encodersFile, &pkg.Encoders, false); err != nil {
		return nil, err
	}
	if err := s.readJSON(featureNamesFile, &pkg.FeatureNames, false); err != nil {
		return nil, err
	}
	if err := s.readJSON(metadataFile, &meta, false); err != nil {
		return nil, err
	}

	pkg.ModelName = meta.ModelName
	pkg.ModelType = meta.ModelType
	pkg.Metrics = meta.Metrics
	pkg.Timestamp = meta.Timestamp
	return pkg, nil
}

// Exists reports whether the primary artifact is on disk.
func (s *Store) Exists() bool {
	name := packageFile
	if s.mode == ModeComponent {
		name = modelFile
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// List returns the artifacts in the store directory, sorted by name.
func (s *Store) List() ([]domain.ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("modelstore: read directory: %w", err)
	}

	var infos []domain.ArtifactInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("modelstore: stat %s: %w", e.Name(), err)
		}
		infos = append(infos, domain.ArtifactInfo{
			Name:    e.Name(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("modelstore: encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("modelstore: write %s: %w", name, err)
	}
	return nil
}

// readJSON reads and decodes one artifact. When primary is true a
// missing file maps to ErrNotFound; otherwise absence means the set is
// incomplete and maps to ErrCorrupt.
func (s *Store) readJSON(name string, v any, primary bool) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			if primary {
				return fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return fmt.Errorf("%w: missing component %s", ErrCorrupt, name)
		}
		return fmt.Errorf("modelstore: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}
