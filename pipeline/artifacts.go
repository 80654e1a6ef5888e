package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"churnpredict/ml"

	"gopkg.in/yaml.v2"
)

// ManifestFile names the optional manifest in an artifact directory.
const ManifestFile = "manifest.yaml"

// Manifest describes an artifact directory. Paths are relative to the
// directory that holds the manifest.
type Manifest struct {
	Version     string `yaml:"version"`
	RawEncoding string `yaml:"raw_encoding"`
	Model       struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
	} `yaml:"model"`
	LabelEncoders    string `yaml:"label_encoders"`
	Scaler           string `yaml:"scaler"`
	SelectedFeatures string `yaml:"selected_features"`
	Imputation       string `yaml:"imputation"`
}

func defaultManifest() Manifest {
	var m Manifest
	m.RawEncoding = string(EncodingLabels)
	m.Model.Type = ml.ModelGradientBoosting
	m.Model.Path = "model.json"
	m.LabelEncoders = "label_encoders.json"
	m.Scaler = "scaler.json"
	m.SelectedFeatures = "selected_features.json"
	return m
}

const defaultImputationFile = "imputation.json"

// ArtifactSpec is the raw material for NewArtifacts.
type ArtifactSpec struct {
	Version   string
	Encoding  RawEncoding
	ModelType string
	Model     ml.Classifier
	Encoders  map[string]*ml.LabelEncoder
	Scaler    *ml.StandardScaler
	Features  []string
	Medians   map[string]float64
}

// Artifacts is the immutable set of fitted objects a Pipeline runs on.
type Artifacts struct {
	version   string
	encoding  RawEncoding
	modelType string
	model     ml.Classifier
	encoders  map[string]*ml.LabelEncoder
	scaler    *ml.StandardScaler
	features  []string
	medians   map[string]float64
}

// NewArtifacts validates that the pieces fit together and copies them.
func NewArtifacts(spec ArtifactSpec) (*Artifacts, error) {
	if spec.Model == nil {
		return nil, &ArtifactLoadError{Artifact: "model", Err: errors.New("no model")}
	}
	if spec.Scaler == nil {
		return nil, &ArtifactLoadError{Artifact: "scaler", Err: errors.New("no scaler")}
	}
	if len(spec.Features) == 0 {
		return nil, &ArtifactLoadError{Artifact: "selected_features", Err: errors.New("feature list is empty")}
	}
	encoding := spec.Encoding
	if encoding == "" {
		encoding = EncodingLabels
	}
	if _, err := ParseRawEncoding(string(encoding)); err != nil {
		return nil, &ArtifactLoadError{Artifact: "manifest", Err: err}
	}

	for _, name := range spec.Scaler.Features() {
		if !IsNumeric(name) {
			return nil, &ArtifactLoadError{Artifact: "scaler", Err: fmt.Errorf("%q is not a numeric field", name)}
		}
	}

	seen := make(map[string]bool, len(spec.Features))
	for _, name := range spec.Features {
		if seen[name] {
			return nil, &ArtifactLoadError{Artifact: "selected_features", Err: fmt.Errorf("duplicate feature %q", name)}
		}
		seen[name] = true
		switch {
		case IsNumeric(name):
		case IsCategorical(name):
			if spec.Encoders[name] == nil {
				return nil, &ArtifactLoadError{Artifact: "label_encoders", Err: fmt.Errorf("no encoder for selected feature %q", name)}
			}
		default:
			return nil, &ArtifactLoadError{Artifact: "selected_features", Err: fmt.Errorf("unknown feature %q", name)}
		}
	}
	n := spec.Model.NumFeatures()
	if w, ok := spec.Model.(ml.WidthInferrer); ok && w.WidthInferred() {
		if n > len(spec.Features) {
			return nil, &ArtifactLoadError{
				Artifact: "model",
				Err:      fmt.Errorf("model splits on feature %d, feature list has %d", n-1, len(spec.Features)),
			}
		}
	} else if n != len(spec.Features) {
		return nil, &ArtifactLoadError{
			Artifact: "model",
			Err:      fmt.Errorf("model expects %d features, feature list has %d", n, len(spec.Features)),
		}
	}

	encoders := make(map[string]*ml.LabelEncoder)
	for field, encoder := range spec.Encoders {
		// encoders fitted on other columns, such as the target, are not used
		if IsCategorical(field) && encoder != nil {
			encoders[field] = encoder
		}
	}
	medians := make(map[string]float64, len(spec.Medians))
	for field, median := range spec.Medians {
		if !IsNumeric(field) {
			return nil, &ArtifactLoadError{Artifact: "imputation", Err: fmt.Errorf("%q is not a numeric field", field)}
		}
		medians[field] = median
	}

	return &Artifacts{
		version:   spec.Version,
		encoding:  encoding,
		modelType: spec.ModelType,
		model:     spec.Model,
		encoders:  encoders,
		scaler:    spec.Scaler,
		features:  append([]string(nil), spec.Features...),
		medians:   medians,
	}, nil
}

// LoadArtifacts reads an artifact directory. Every failure is returned as an
// *ArtifactLoadError.
func LoadArtifacts(dir string) (*Artifacts, error) {
	manifest, explicit, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	encoding, err := ParseRawEncoding(manifest.RawEncoding)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "manifest", Path: filepath.Join(dir, ManifestFile), Err: err}
	}

	modelPath := filepath.Join(dir, manifest.Model.Path)
	model, err := ml.LoadModel(manifest.Model.Type, modelPath)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "model", Path: modelPath, Err: err}
	}

	encodersPath := filepath.Join(dir, manifest.LabelEncoders)
	payload, err := os.ReadFile(encodersPath)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "label_encoders", Path: encodersPath, Err: err}
	}
	encoders, err := ml.DecodeLabelEncoders(payload)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "label_encoders", Path: encodersPath, Err: err}
	}

	scalerPath := filepath.Join(dir, manifest.Scaler)
	payload, err = os.ReadFile(scalerPath)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "scaler", Path: scalerPath, Err: err}
	}
	scaler, err := ml.DecodeStandardScaler(payload)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "scaler", Path: scalerPath, Err: err}
	}

	featuresPath := filepath.Join(dir, manifest.SelectedFeatures)
	var features []string
	if err := readJSON(featuresPath, &features); err != nil {
		return nil, &ArtifactLoadError{Artifact: "selected_features", Path: featuresPath, Err: err}
	}

	medians := map[string]float64{}
	imputation := manifest.Imputation
	if imputation == "" {
		imputation = defaultImputationFile
	}
	imputationPath := filepath.Join(dir, imputation)
	if err := readJSON(imputationPath, &medians); err != nil {
		// the default imputation file is optional, an explicitly named one is not
		if explicit.imputation || !errors.Is(err, fs.ErrNotExist) {
			return nil, &ArtifactLoadError{Artifact: "imputation", Path: imputationPath, Err: err}
		}
	}

	return NewArtifacts(ArtifactSpec{
		Version:   manifest.Version,
		Encoding:  encoding,
		ModelType: manifest.Model.Type,
		Model:     model,
		Encoders:  encoders,
		Scaler:    scaler,
		Features:  features,
		Medians:   medians,
	})
}

type explicitFields struct {
	imputation bool
}

func readManifest(dir string) (Manifest, explicitFields, error) {
	manifest := defaultManifest()
	var explicit explicitFields

	info, err := os.Stat(dir)
	if err != nil {
		return manifest, explicit, &ArtifactLoadError{Artifact: "directory", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return manifest, explicit, &ArtifactLoadError{Artifact: "directory", Path: dir, Err: errors.New("not a directory")}
	}

	path := filepath.Join(dir, ManifestFile)
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest, explicit, nil
	}
	if err != nil {
		return manifest, explicit, &ArtifactLoadError{Artifact: "manifest", Path: path, Err: err}
	}

	var file Manifest
	if err := yaml.UnmarshalStrict(payload, &file); err != nil {
		return manifest, explicit, &ArtifactLoadError{Artifact: "manifest", Path: path, Err: err}
	}
	manifest.Version = file.Version
	if file.RawEncoding != "" {
		manifest.RawEncoding = file.RawEncoding
	}
	if file.Model.Type != "" {
		manifest.Model.Type = file.Model.Type
	}
	if file.Model.Path != "" {
		manifest.Model.Path = file.Model.Path
	}
	if file.LabelEncoders != "" {
		manifest.LabelEncoders = file.LabelEncoders
	}
	if file.Scaler != "" {
		manifest.Scaler = file.Scaler
	}
	if file.SelectedFeatures != "" {
		manifest.SelectedFeatures = file.SelectedFeatures
	}
	if file.Imputation != "" {
		manifest.Imputation = file.Imputation
		explicit.imputation = true
	}
	return manifest, explicit, nil
}

func readJSON(path string, v any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

func (a *Artifacts) Version() string            { return a.version }
func (a *Artifacts) Encoding() RawEncoding      { return a.encoding }
func (a *Artifacts) ModelType() string          { return a.modelType }
func (a *Artifacts) Features() []string         { return append([]string(nil), a.features...) }
func (a *Artifacts) Scaler() *ml.StandardScaler { return a.scaler }

// Encoder returns the fitted encoder of a categorical field.
func (a *Artifacts) Encoder(field string) (*ml.LabelEncoder, bool) {
	encoder, ok := a.encoders[field]
	return encoder, ok
}

// Median returns the training-time median of a numeric field.
func (a *Artifacts) Median(field string) (float64, bool) {
	median, ok := a.medians[field]
	return median, ok
}

// EncodedFields lists the categorical fields with an encoder, sorted.
func (a *Artifacts) EncodedFields() []string {
	fields := make([]string, 0, len(a.encoders))
	for field := range a.encoders {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// SupportsProbability reports whether the model implements PredictProba.
func (a *Artifacts) SupportsProbability() bool {
	_, ok := a.model.(ml.ProbabilityEstimator)
	return ok
}
