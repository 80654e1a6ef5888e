package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpredict/ml"
	"churnpredict/pipeline"
	"churnpredict/pipeline/pipelinetest"
)

func TestLoadArtifactsLabels(t *testing.T) {
	artifacts, err := pipeline.LoadArtifacts("testdata/labels")
	require.NoError(t, err)

	assert.Equal(t, "2024.06-telco-gbt", artifacts.Version())
	assert.Equal(t, pipeline.EncodingLabels, artifacts.Encoding())
	assert.Equal(t, ml.ModelGradientBoosting, artifacts.ModelType())
	assert.True(t, artifacts.SupportsProbability())
	if diff := cmp.Diff(pipelinetest.Features(), artifacts.Features()); diff != "" {
		t.Fatalf("feature order mismatch (-want +got):\n%s", diff)
	}

	// the target column encoder shipped with the export is not a feature
	_, ok := artifacts.Encoder("Churn")
	assert.False(t, ok)
	assert.Len(t, artifacts.EncodedFields(), len(pipeline.CategoricalFields()))

	median, ok := artifacts.Median(pipeline.FieldTotalCharges)
	require.True(t, ok)
	assert.Equal(t, pipelinetest.TotalChargesMedian, median)
}

func TestLoadedArtifactsMatchFixture(t *testing.T) {
	artifacts, err := pipeline.LoadArtifacts("testdata/labels")
	require.NoError(t, err)
	loaded, err := pipeline.New(artifacts)
	require.NoError(t, err)
	fixture := pipelinetest.Pipeline()

	for _, record := range []pipeline.CustomerRecord{pipelinetest.ChurnRecord(), pipelinetest.StayRecord()} {
		want, err := fixture.Predict(record)
		require.NoError(t, err)
		got, err := loaded.Predict(record)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("prediction mismatch for %s (-fixture +loaded):\n%s", record.CustomerID, diff)
		}
	}
}

func TestLoadArtifactsCodesDecisionTree(t *testing.T) {
	artifacts, err := pipeline.LoadArtifacts("testdata/codes")
	require.NoError(t, err)
	assert.Equal(t, pipeline.EncodingCodes, artifacts.Encoding())
	assert.Equal(t, ml.ModelDecisionTree, artifacts.ModelType())

	p, err := pipeline.New(artifacts)
	require.NoError(t, err)

	record := pipeline.CustomerRecord{
		Contract:       "0",
		Tenure:         pipeline.Float(5),
		MonthlyCharges: pipeline.Float(80),
		TotalCharges:   "400",
	}
	result, err := p.Predict(record)
	require.NoError(t, err)
	assert.Equal(t, pipeline.LabelChurn, result.Label)
	require.NotNil(t, result.Probability)
	assert.InDelta(t, 0.8, *result.Probability, 1e-9)

	record.Contract = "2"
	result, err = p.Predict(record)
	require.NoError(t, err)
	assert.Equal(t, pipeline.LabelStay, result.Label)
	assert.InDelta(t, 0.1, *result.Probability, 1e-9)
}

func TestLoadArtifactsWithoutMedianLeavesTotalChargesMissing(t *testing.T) {
	artifacts, err := pipeline.LoadArtifacts("testdata/codes")
	require.NoError(t, err)
	p, err := pipeline.New(artifacts)
	require.NoError(t, err)

	_, err = p.Predict(pipeline.CustomerRecord{
		Contract:       "1",
		Tenure:         pipeline.Float(5),
		MonthlyCharges: pipeline.Float(80),
		TotalCharges:   " ",
	})
	var missingErr *pipeline.MissingFeatureError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, pipeline.FieldTotalCharges, missingErr.Feature)
}

func copyDir(t *testing.T, src string) string {
	t.Helper()
	dst := t.TempDir()
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, entry := range entries {
		payload, err := os.ReadFile(filepath.Join(src, entry.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, entry.Name()), payload, 0o600))
	}
	return dst
}

func TestLoadArtifactsFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, dir string)
		artifact string
	}{
		{
			name:     "missing model file",
			mutate:   func(t *testing.T, dir string) { require.NoError(t, os.Remove(filepath.Join(dir, "model.json"))) },
			artifact: "model",
		},
		{
			name: "corrupt encoders",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "label_encoders.json"), []byte("{"), 0o600))
			},
			artifact: "label_encoders",
		},
		{
			name: "feature list longer than model",
			mutate: func(t *testing.T, dir string) {
				payload := `["tenure","MonthlyCharges","TotalCharges","Contract","InternetService","PaymentMethod","OnlineSecurity","TechSupport","PaperlessBilling","SeniorCitizen","gender"]`
				require.NoError(t, os.WriteFile(filepath.Join(dir, "selected_features.json"), []byte(payload), 0o600))
			},
			artifact: "model",
		},
		{
			name: "unknown feature",
			mutate: func(t *testing.T, dir string) {
				payload := `["tenure","MonthlyCharges","TotalCharges","Contract","InternetService","PaymentMethod","OnlineSecurity","TechSupport","PaperlessBilling","Region"]`
				require.NoError(t, os.WriteFile(filepath.Join(dir, "selected_features.json"), []byte(payload), 0o600))
			},
			artifact: "selected_features",
		},
		{
			name: "unknown raw encoding",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, pipeline.ManifestFile), []byte("raw_encoding: onehot\n"), 0o600))
			},
			artifact: "manifest",
		},
		{
			name: "explicit imputation file missing",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "imputation.json")))
			},
			artifact: "imputation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := copyDir(t, "testdata/labels")
			tt.mutate(t, dir)

			_, err := pipeline.LoadArtifacts(dir)
			var loadErr *pipeline.ArtifactLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.artifact, loadErr.Artifact)
			assert.Equal(t, pipeline.KindArtifactLoad, pipeline.KindOf(err))
			assert.False(t, pipeline.KindOf(err).IsClientError())
		})
	}
}

func TestLoadArtifactsMissingDirectory(t *testing.T) {
	_, err := pipeline.LoadArtifacts(filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, pipeline.KindArtifactLoad, pipeline.KindOf(err))
}

func TestLoadArtifactsDefaultsWithoutManifest(t *testing.T) {
	dir := copyDir(t, "testdata/labels")
	require.NoError(t, os.Remove(filepath.Join(dir, pipeline.ManifestFile)))

	artifacts, err := pipeline.LoadArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, pipeline.EncodingLabels, artifacts.Encoding())
	assert.Empty(t, artifacts.Version())
}

func TestNewArtifactsRequiresEncoderForSelectedField(t *testing.T) {
	spec := pipelinetest.ArtifactSpec(pipeline.EncodingLabels)
	delete(spec.Encoders, pipeline.FieldContract)

	_, err := pipeline.NewArtifacts(spec)
	var loadErr *pipeline.ArtifactLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "label_encoders", loadErr.Artifact)
}

func TestNewArtifactsTreeWithoutDeclaredWidth(t *testing.T) {
	leaf := func(class int) ml.TreeNode {
		return ml.TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: class, IsLeaf: true}
	}
	build := func(feature int) pipeline.ArtifactSpec {
		tree, err := ml.NewDecisionTree([]ml.TreeNode{
			{FeatureIdx: feature, Threshold: 0.5, LeftChild: 1, RightChild: 2},
			leaf(1),
			leaf(0),
		}, 0)
		require.NoError(t, err)
		spec := pipelinetest.ArtifactSpec(pipeline.EncodingLabels)
		spec.ModelType = ml.ModelDecisionTree
		spec.Model = tree
		return spec
	}

	// splits only on Contract, the fourth of ten selected features
	artifacts, err := pipeline.NewArtifacts(build(3))
	require.NoError(t, err)
	p, err := pipeline.New(artifacts)
	require.NoError(t, err)
	result, err := p.Predict(pipelinetest.ChurnRecord())
	require.NoError(t, err)
	assert.Equal(t, pipeline.LabelChurn, result.Label)

	_, err = pipeline.NewArtifacts(build(len(pipelinetest.Features())))
	var loadErr *pipeline.ArtifactLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "model", loadErr.Artifact)
}
