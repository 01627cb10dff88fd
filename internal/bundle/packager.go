// Package bundle reads and writes versioned model bundles on the
// filesystem. A bundle is a self-contained directory holding every
// artifact needed to reproduce inference behaviour. Publication is
// atomic: artifacts are written to a temporary directory which is then
// renamed into place, so a partially-written bundle is never visible.
package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// Bundle directory layout. The manifest carries per-artifact checksums
// so corruption is detected at load time.
const (
	manifestFile    = "manifest.yaml"
	preprocFile     = "preproc_config.yaml"
	embedderFile    = "embedder/weights.yaml"
	classifierFile  = "classifier/weights.yaml"
	calibrationFile = "classifier/calibration.yaml"
	labelMapFile    = "label_map.yaml"
	clustersFile    = "clusters/clusters.yaml"
	evalFile        = "eval_report.yaml"
)

// versionTagLen truncates the content hash for readable version tags.
const versionTagLen = 16

// ModelPackager is the filesystem bundle store.
type ModelPackager struct {
	root string
}

var _ driven.BundleStore = (*ModelPackager)(nil)

// NewModelPackager creates the store, making the root directory if
// needed.
func NewModelPackager(root string) (*ModelPackager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating bundle root: %w", err)
	}
	return &ModelPackager{root: root}, nil
}

type manifest struct {
	Version         string            `yaml:"version"`
	EmbedderVersion string            `yaml:"embedder_version"`
	CreatedAt       time.Time         `yaml:"created_at"`
	Checksums       map[string]string `yaml:"checksums"`
}

type embedderArtifact struct {
	Version string            `yaml:"version"`
	Params  domain.EmbedParams `yaml:"params"`
}

// Publish writes the bundle and returns its content-derived version
// tag. Identical content yields an identical tag, and republishing an
// existing version is a no-op.
func (p *ModelPackager) Publish(_ context.Context, bundle *domain.ModelBundle) (string, error) {
	artifacts, err := serialize(bundle)
	if err != nil {
		return "", err
	}

	version := contentVersion(artifacts)
	final := filepath.Join(p.root, version)
	if _, err := os.Stat(final); err == nil {
		logger.Debug("bundle: version %s already published", version)
		return version, nil
	}

	checksums := make(map[string]string, len(artifacts))
	for name, data := range artifacts {
		sum := sha256.Sum256(data)
		checksums[name] = hex.EncodeToString(sum[:])
	}

	createdAt := bundle.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	manifestData, err := yaml.Marshal(manifest{
		Version:         version,
		EmbedderVersion: bundle.EmbedderVersion,
		CreatedAt:       createdAt,
		Checksums:       checksums,
	})
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.MkdirTemp(p.root, ".publish-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	artifacts[manifestFile] = manifestData
	for name, data := range artifacts {
		path := filepath.Join(tmp, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("staging %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("staging %s: %w", name, err)
		}
	}

	if err := os.Rename(tmp, final); err != nil {
		// A concurrent publisher won the rename; the content is identical.
		if _, statErr := os.Stat(final); statErr == nil {
			return version, nil
		}
		return "", fmt.Errorf("publishing bundle %s: %w", version, err)
	}

	logger.Info("bundle: published version %s", version)
	return version, nil
}

// Load reads a published bundle, verifying artifact checksums against
// the manifest.
func (p *ModelPackager) Load(_ context.Context, version string) (*domain.ModelBundle, error) {
	dir := filepath.Join(p.root, version)
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	read := func(name string, out any) error {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != m.Checksums[name] {
			return fmt.Errorf("%w: bundle %s artifact %s fails checksum verification",
				domain.ErrConfigMismatch, version, name)
		}
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s: %w", name, err)
		}
		return nil
	}

	var (
		preproc  domain.PreprocessConfig
		embedder embedderArtifact
		weights  domain.ClassifierWeights
		cal      domain.Calibration
		taxa     []domain.Taxon
		clusters []domain.ClusterMetadata
		eval     domain.EvaluationReport
	)
	for _, step := range []struct {
		name string
		out  any
	}{
		{preprocFile, &preproc},
		{embedderFile, &embedder},
		{classifierFile, &weights},
		{calibrationFile, &cal},
		{labelMapFile, &taxa},
		{clustersFile, &clusters},
		{evalFile, &eval},
	} {
		if err := read(step.name, step.out); err != nil {
			return nil, err
		}
	}

	return &domain.ModelBundle{
		Version:         m.Version,
		Preprocess:      preproc,
		EmbedderVersion: embedder.Version,
		Embed:           embedder.Params,
		Classifier:      weights,
		Calibration:     cal,
		Labels:          domain.NewLabelMap(taxa),
		Clusters:        clusters,
		Eval:            eval,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// Latest returns the most recently published bundle.
func (p *ModelPackager) Latest(ctx context.Context) (*domain.ModelBundle, error) {
	versions, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: no bundles published", domain.ErrNoBundle)
	}
	return p.Load(ctx, versions[0])
}

// List returns published version tags, newest first.
func (p *ModelPackager) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}

	type published struct {
		version   string
		createdAt time.Time
	}
	var found []published
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		m, err := readManifest(filepath.Join(p.root, entry.Name()))
		if err != nil {
			logger.Warn("bundle: skipping unreadable directory %s: %v", entry.Name(), err)
			continue
		}
		found = append(found, published{version: m.Version, createdAt: m.CreatedAt})
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].createdAt.Equal(found[j].createdAt) {
			return found[i].createdAt.After(found[j].createdAt)
		}
		return found[i].version < found[j].version
	})

	versions := make([]string, len(found))
	for i, f := range found {
		versions[i] = f.version
	}
	return versions, nil
}

func readManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: bundle %s", domain.ErrNotFound, filepath.Base(dir))
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// serialize encodes every artifact except the manifest.
func serialize(bundle *domain.ModelBundle) (map[string][]byte, error) {
	out := map[string][]byte{}
	for _, step := range []struct {
		name string
		in   any
	}{
		{preprocFile, bundle.Preprocess},
		{embedderFile, embedderArtifact{Version: bundle.EmbedderVersion, Params: bundle.Embed}},
		{classifierFile, bundle.Classifier},
		{calibrationFile, bundle.Calibration},
		{labelMapFile, bundle.Labels.Taxa()},
		{clustersFile, bundle.Clusters},
		{evalFile, bundle.Eval},
	} {
		data, err := yaml.Marshal(step.in)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", step.name, err)
		}
		out[step.name] = data
	}
	return out, nil
}

// contentVersion hashes all artifacts in a fixed name order so the
// version tag depends only on bundle content.
func contentVersion(artifacts map[string][]byte) string {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(artifacts[name])
	}
	return hex.EncodeToString(h.Sum(nil))[:versionTagLen]
}
