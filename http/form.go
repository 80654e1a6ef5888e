package http

import (
	"bytes"
	"embed"
	"html/template"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"churnpredict/pipeline"
	"churnpredict/retention"
)

//go:embed templates/*.html
var templateFS embed.FS

type formOption struct {
	Value    string
	Label    string
	Selected bool
}

type formField struct {
	Name    string
	Options []formOption
	Value   string
}

type resultView struct {
	Summary     string
	Churn       bool
	Probability string
	Tier        retention.Tier
	Advice      []string
	Charges     []string
	Imputed     []string
}

type formPage struct {
	Version     string
	Encoding    pipeline.RawEncoding
	CustomerID  string
	Categorical []formField
	Numeric     []formField
	Result      *resultView
	Error       string
}

// formRenderer renders the HTML form from the classes of the loaded encoders.
type formRenderer struct {
	tmpl     *template.Template
	pipeline *pipeline.Pipeline
	printer  *message.Printer
}

func newFormRenderer(p *pipeline.Pipeline) (*formRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &formRenderer{tmpl: tmpl, pipeline: p, printer: message.NewPrinter(language.AmericanEnglish)}, nil
}

// page builds the form with values pre-filled from a previous submission.
func (f *formRenderer) page(values map[string]string) *formPage {
	artifacts := f.pipeline.Artifacts()
	page := &formPage{
		Version:    artifacts.Version(),
		Encoding:   artifacts.Encoding(),
		CustomerID: values[pipeline.FieldCustomerID],
	}
	for _, field := range pipeline.CategoricalFields() {
		encoder, ok := artifacts.Encoder(field)
		if !ok {
			continue
		}
		ff := formField{Name: field, Value: values[field]}
		for code, class := range encoder.Classes() {
			value := class
			if artifacts.Encoding() == pipeline.EncodingCodes {
				value = strconv.Itoa(code)
			}
			ff.Options = append(ff.Options, formOption{Value: value, Label: class, Selected: value == values[field]})
		}
		page.Categorical = append(page.Categorical, ff)
	}
	for _, field := range pipeline.NumericFields() {
		page.Numeric = append(page.Numeric, formField{Name: field, Value: values[field]})
	}
	return page
}

func (f *formRenderer) render(w http.ResponseWriter, status int, page *formPage) error {
	var buf bytes.Buffer
	if err := f.tmpl.ExecuteTemplate(&buf, "index.html", page); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func (f *formRenderer) result(a retention.Assessment, record pipeline.CustomerRecord) *resultView {
	view := &resultView{
		Summary: a.Summary(),
		Churn:   a.Prediction == pipeline.LabelChurn,
		Tier:    a.Tier,
		Advice:  a.Advice,
		Imputed: a.Imputed,
	}
	if a.Probability != nil {
		view.Probability = f.printer.Sprint(number.Percent(*a.Probability, number.MaxFractionDigits(1)))
	}
	if record.MonthlyCharges != nil {
		view.Charges = append(view.Charges,
			"Monthly charges: "+f.printer.Sprint(currency.Symbol(currency.USD.Amount(*record.MonthlyCharges))))
	}
	// an imputed total is listed under Imputed instead
	if slices.Contains(a.Imputed, pipeline.FieldTotalCharges) {
		return view
	}
	if total, err := strconv.ParseFloat(strings.TrimSpace(record.TotalCharges), 64); err == nil && !math.IsNaN(total) && !math.IsInf(total, 0) {
		view.Charges = append(view.Charges,
			"Total charges: "+f.printer.Sprint(currency.Symbol(currency.USD.Amount(total))))
	}
	return view
}

func (a *API) handleForm(w http.ResponseWriter, r *http.Request) {
	if err := a.form.render(w, http.StatusOK, a.form.page(nil)); err != nil {
		a.logger.Error("render form", zap.Error(err))
	}
}

func (a *API) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		page := a.form.page(nil)
		page.Error = "The form could not be read."
		a.renderForm(w, http.StatusBadRequest, page)
		return
	}
	values := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		values[key] = r.PostForm.Get(key)
	}
	page := a.form.page(values)

	record, err := pipeline.RecordFromStrings(values)
	if err != nil {
		page.Error = err.Error()
		a.renderForm(w, statusFor(err), page)
		return
	}
	assessment, err := a.svc.Predict(r.Context(), record)
	if err != nil {
		status := statusFor(err)
		page.Error = err.Error()
		if status == http.StatusInternalServerError {
			a.logger.Error("form prediction failed", zap.Error(err))
			page.Error = "The prediction could not be computed."
		}
		a.renderForm(w, status, page)
		return
	}
	page.Result = a.form.result(assessment, record)
	a.renderForm(w, http.StatusOK, page)
}

func (a *API) renderForm(w http.ResponseWriter, status int, page *formPage) {
	if err := a.form.render(w, status, page); err != nil {
		a.logger.Error("render form", zap.Error(err))
	}
}
