package pipeline

import (
	"fmt"
	"strings"
)

// Numeric field names.
const (
	FieldTenure         = "tenure"
	FieldMonthlyCharges = "MonthlyCharges"
	FieldTotalCharges   = "TotalCharges"
)

// Categorical field names, spelled as in the training data.
const (
	FieldGender           = "gender"
	FieldSeniorCitizen    = "SeniorCitizen"
	FieldPartner          = "Partner"
	FieldDependents       = "Dependents"
	FieldPhoneService     = "PhoneService"
	FieldMultipleLines    = "MultipleLines"
	FieldInternetService  = "InternetService"
	FieldOnlineSecurity   = "OnlineSecurity"
	FieldOnlineBackup     = "OnlineBackup"
	FieldDeviceProtection = "DeviceProtection"
	FieldTechSupport      = "TechSupport"
	FieldStreamingTV      = "StreamingTV"
	FieldStreamingMovies  = "StreamingMovies"
	FieldContract         = "Contract"
	FieldPaperlessBilling = "PaperlessBilling"
	FieldPaymentMethod    = "PaymentMethod"
)

// FieldCustomerID identifies the customer; it is never a model feature.
const FieldCustomerID = "customerID"

// CategoricalFields lists the label-encoded fields in training column order.
func CategoricalFields() []string {
	return []string{
		FieldGender,
		FieldSeniorCitizen,
		FieldPartner,
		FieldDependents,
		FieldPhoneService,
		FieldMultipleLines,
		FieldInternetService,
		FieldOnlineSecurity,
		FieldOnlineBackup,
		FieldDeviceProtection,
		FieldTechSupport,
		FieldStreamingTV,
		FieldStreamingMovies,
		FieldContract,
		FieldPaperlessBilling,
		FieldPaymentMethod,
	}
}

// NumericFields lists the scaled fields.
func NumericFields() []string {
	return []string{FieldTenure, FieldMonthlyCharges, FieldTotalCharges}
}

func IsCategorical(field string) bool {
	for _, name := range CategoricalFields() {
		if name == field {
			return true
		}
	}
	return false
}

func IsNumeric(field string) bool {
	for _, name := range NumericFields() {
		if name == field {
			return true
		}
	}
	return false
}

// RawEncoding declares how categorical values arrive from the caller.
type RawEncoding string

const (
	// EncodingLabels carries human-readable labels such as "Month-to-month".
	EncodingLabels RawEncoding = "labels"
	// EncodingCodes carries the integer codes assigned by the training encoders.
	EncodingCodes RawEncoding = "codes"
)

// ParseRawEncoding defaults to labels when s is empty.
func ParseRawEncoding(s string) (RawEncoding, error) {
	switch RawEncoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingLabels:
		return EncodingLabels, nil
	case EncodingCodes:
		return EncodingCodes, nil
	default:
		return "", fmt.Errorf("unknown raw encoding %q", s)
	}
}

// CustomerRecord is one customer as supplied by a caller. An empty categorical
// value or a nil numeric pointer means the field was not supplied.
// TotalCharges stays raw because the pipeline coerces it.
type CustomerRecord struct {
	CustomerID string

	Gender           string
	SeniorCitizen    string
	Partner          string
	Dependents       string
	PhoneService     string
	MultipleLines    string
	InternetService  string
	OnlineSecurity   string
	OnlineBackup     string
	DeviceProtection string
	TechSupport      string
	StreamingTV      string
	StreamingMovies  string
	Contract         string
	PaperlessBilling string
	PaymentMethod    string

	Tenure         *float64
	MonthlyCharges *float64
	TotalCharges   string
}

// Categorical returns the raw value of a categorical field.
func (r *CustomerRecord) Categorical(field string) (string, bool) {
	p := r.categoricalRef(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetCategorical assigns a categorical field by its training-data name.
func (r *CustomerRecord) SetCategorical(field, value string) error {
	p := r.categoricalRef(field)
	if p == nil {
		return fmt.Errorf("%q is not a categorical field", field)
	}
	*p = value
	return nil
}

func (r *CustomerRecord) categoricalRef(field string) *string {
	switch field {
	case FieldGender:
		return &r.Gender
	case FieldSeniorCitizen:
		return &r.SeniorCitizen
	case FieldPartner:
		return &r.Partner
	case FieldDependents:
		return &r.Dependents
	case FieldPhoneService:
		return &r.PhoneService
	case FieldMultipleLines:
		return &r.MultipleLines
	case FieldInternetService:
		return &r.InternetService
	case FieldOnlineSecurity:
		return &r.OnlineSecurity
	case FieldOnlineBackup:
		return &r.OnlineBackup
	case FieldDeviceProtection:
		return &r.DeviceProtection
	case FieldTechSupport:
		return &r.TechSupport
	case FieldStreamingTV:
		return &r.StreamingTV
	case FieldStreamingMovies:
		return &r.StreamingMovies
	case FieldContract:
		return &r.Contract
	case FieldPaperlessBilling:
		return &r.PaperlessBilling
	case FieldPaymentMethod:
		return &r.PaymentMethod
	default:
		return nil
	}
}

// Key renders the record canonically; equal records produce equal keys.
func (r *CustomerRecord) Key() string {
	var b strings.Builder
	for _, field := range CategoricalFields() {
		value, _ := r.Categorical(field)
		fmt.Fprintf(&b, "%s=%q;", field, value)
	}
	writeNumber := func(name string, v *float64) {
		if v == nil {
			fmt.Fprintf(&b, "%s=nil;", name)
			return
		}
		fmt.Fprintf(&b, "%s=%v;", name, *v)
	}
	writeNumber(FieldTenure, r.Tenure)
	writeNumber(FieldMonthlyCharges, r.MonthlyCharges)
	fmt.Fprintf(&b, "%s=%q", FieldTotalCharges, r.TotalCharges)
	return b.String()
}

// Float returns a pointer to v, for populating the numeric fields.
func Float(v float64) *float64 {
	return &v
}
