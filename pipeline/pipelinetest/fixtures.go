// Package pipelinetest provides in-memory artifacts shaped like the Telco
// customer churn export, for tests of packages built on pipeline.
package pipelinetest

import (
	"fmt"
	"strconv"

	"churnpredict/ml"
	"churnpredict/pipeline"
)

// TotalChargesMedian is the training-time median stored as the imputation
// artifact.
const TotalChargesMedian = 1397.475

// Classes lists each categorical field's training classes in encoder order.
func Classes() map[string][]string {
	yesNo := []string{"No", "Yes"}
	internetAddOn := []string{"No", "No internet service", "Yes"}
	return map[string][]string{
		pipeline.FieldGender:           {"Female", "Male"},
		pipeline.FieldSeniorCitizen:    {"0", "1"},
		pipeline.FieldPartner:          yesNo,
		pipeline.FieldDependents:       yesNo,
		pipeline.FieldPhoneService:     yesNo,
		pipeline.FieldMultipleLines:    {"No", "No phone service", "Yes"},
		pipeline.FieldInternetService:  {"DSL", "Fiber optic", "No"},
		pipeline.FieldOnlineSecurity:   internetAddOn,
		pipeline.FieldOnlineBackup:     internetAddOn,
		pipeline.FieldDeviceProtection: internetAddOn,
		pipeline.FieldTechSupport:      internetAddOn,
		pipeline.FieldStreamingTV:      internetAddOn,
		pipeline.FieldStreamingMovies:  internetAddOn,
		pipeline.FieldContract:         {"Month-to-month", "One year", "Two year"},
		pipeline.FieldPaperlessBilling: yesNo,
		pipeline.FieldPaymentMethod: {
			"Bank transfer (automatic)",
			"Credit card (automatic)",
			"Electronic check",
			"Mailed check",
		},
	}
}

// Features is the selected feature order of the fixture model.
func Features() []string {
	return []string{
		pipeline.FieldTenure,
		pipeline.FieldMonthlyCharges,
		pipeline.FieldTotalCharges,
		pipeline.FieldContract,
		pipeline.FieldInternetService,
		pipeline.FieldPaymentMethod,
		pipeline.FieldOnlineSecurity,
		pipeline.FieldTechSupport,
		pipeline.FieldPaperlessBilling,
		pipeline.FieldSeniorCitizen,
	}
}

func Encoders() map[string]*ml.LabelEncoder {
	encoders := make(map[string]*ml.LabelEncoder)
	for field, classes := range Classes() {
		encoder, err := ml.NewLabelEncoder(classes)
		if err != nil {
			panic(err)
		}
		encoders[field] = encoder
	}
	return encoders
}

func Scaler() *ml.StandardScaler {
	scaler, err := ml.NewStandardScaler(
		[]string{pipeline.FieldTenure, pipeline.FieldMonthlyCharges, pipeline.FieldTotalCharges},
		[]float64{32.371149, 64.761692, 2283.300441},
		[]float64{24.557737, 30.087911, 2266.610181},
	)
	if err != nil {
		panic(err)
	}
	return scaler
}

func leaf(v float64) ml.TreeNode {
	return ml.TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, IsLeaf: true, Value: &v}
}

func split(feature int, threshold float64, left, right int) ml.TreeNode {
	return ml.TreeNode{FeatureIdx: feature, Threshold: threshold, LeftChild: left, RightChild: right}
}

// Model is a three-tree ensemble over Features. Month-to-month contracts,
// short tenure and fiber optic internet push the margin towards churn.
func Model() *ml.BoostedTrees {
	return &ml.BoostedTrees{
		BaseMargin:     -0.2,
		NumFeatureCols: len(Features()),
		Trees: [][]ml.TreeNode{
			{split(3, 0.5, 1, 2), leaf(0.6), leaf(-0.9)},
			{split(0, -0.5, 1, 2), leaf(0.4), split(1, 0.5, 3, 4), leaf(-0.3), leaf(0.1)},
			{split(4, 0.5, 1, 2), leaf(-0.1), split(4, 1.5, 3, 4), leaf(0.35), leaf(-0.5)},
		},
	}
}

// ArtifactSpec returns the fixture artifacts for the given raw encoding.
func ArtifactSpec(encoding pipeline.RawEncoding) pipeline.ArtifactSpec {
	return pipeline.ArtifactSpec{
		Version:   "fixture",
		Encoding:  encoding,
		ModelType: ml.ModelGradientBoosting,
		Model:     Model(),
		Encoders:  Encoders(),
		Scaler:    Scaler(),
		Features:  Features(),
		Medians:   map[string]float64{pipeline.FieldTotalCharges: TotalChargesMedian},
	}
}

func Artifacts(encoding pipeline.RawEncoding) *pipeline.Artifacts {
	artifacts, err := pipeline.NewArtifacts(ArtifactSpec(encoding))
	if err != nil {
		panic(err)
	}
	return artifacts
}

// Pipeline returns a label-encoded fixture pipeline.
func Pipeline() *pipeline.Pipeline {
	p, err := pipeline.New(Artifacts(pipeline.EncodingLabels))
	if err != nil {
		panic(err)
	}
	return p
}

// ChurnProbability and StayProbability are the fixture model's outputs for
// ChurnRecord and StayRecord.
const (
	ChurnProbability = 0.759510
	StayProbability  = 0.182426
)

// ChurnRecord is a new month-to-month fiber customer with a blank
// TotalCharges, as submitted before the first bill.
func ChurnRecord() pipeline.CustomerRecord {
	return pipeline.CustomerRecord{
		CustomerID:       "7590-VHVEG",
		Gender:           "Female",
		SeniorCitizen:    "0",
		Partner:          "Yes",
		Dependents:       "No",
		PhoneService:     "Yes",
		MultipleLines:    "No",
		InternetService:  "Fiber optic",
		OnlineSecurity:   "No",
		OnlineBackup:     "Yes",
		DeviceProtection: "No",
		TechSupport:      "No",
		StreamingTV:      "No",
		StreamingMovies:  "No",
		Contract:         "Month-to-month",
		PaperlessBilling: "Yes",
		PaymentMethod:    "Electronic check",
		Tenure:           pipeline.Float(12),
		MonthlyCharges:   pipeline.Float(70.35),
		TotalCharges:     "",
	}
}

// StayRecord is a long-tenured two-year DSL customer.
func StayRecord() pipeline.CustomerRecord {
	return pipeline.CustomerRecord{
		CustomerID:       "5575-GNVDE",
		Gender:           "Male",
		SeniorCitizen:    "0",
		Partner:          "No",
		Dependents:       "No",
		PhoneService:     "Yes",
		MultipleLines:    "No",
		InternetService:  "DSL",
		OnlineSecurity:   "Yes",
		OnlineBackup:     "No",
		DeviceProtection: "Yes",
		TechSupport:      "Yes",
		StreamingTV:      "No",
		StreamingMovies:  "No",
		Contract:         "Two year",
		PaperlessBilling: "No",
		PaymentMethod:    "Mailed check",
		Tenure:           pipeline.Float(60),
		MonthlyCharges:   pipeline.Float(50),
		TotalCharges:     "3000",
	}
}

// ToCodes rewrites a label-encoded record into integer codes.
func ToCodes(record pipeline.CustomerRecord) pipeline.CustomerRecord {
	encoders := Encoders()
	for _, field := range pipeline.CategoricalFields() {
		value, _ := record.Categorical(field)
		if value == "" {
			continue
		}
		code, err := encoders[field].Transform(value)
		if err != nil {
			panic(fmt.Sprintf("fixture record field %s: %v", field, err))
		}
		_ = record.SetCategorical(field, strconv.Itoa(code))
	}
	return record
}

// Values flattens a record into the string map form used by HTML forms and
// CSV rows.
func Values(record pipeline.CustomerRecord) map[string]string {
	values := map[string]string{
		pipeline.FieldCustomerID:   record.CustomerID,
		pipeline.FieldTotalCharges: record.TotalCharges,
	}
	for _, field := range pipeline.CategoricalFields() {
		values[field], _ = record.Categorical(field)
	}
	if record.Tenure != nil {
		values[pipeline.FieldTenure] = strconv.FormatFloat(*record.Tenure, 'f', -1, 64)
	}
	if record.MonthlyCharges != nil {
		values[pipeline.FieldMonthlyCharges] = strconv.FormatFloat(*record.MonthlyCharges, 'f', -1, 64)
	}
	return values
}
