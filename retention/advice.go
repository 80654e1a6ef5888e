package retention

import "churnpredict/pipeline"

const (
	adviceKeepEngaged   = "Keep the customer engaged with regular service check-ins"
	adviceContract      = "Offer a discounted one or two year contract in place of month-to-month billing"
	advicePayment       = "Encourage a switch from electronic check to automatic payment"
	adviceTechSupport   = "Bundle tech support at no charge for the next billing cycle"
	adviceSecurity      = "Offer a free trial of online security"
	adviceFiber         = "Review fiber optic service quality and pricing for this account"
	adviceOnboarding    = "Enrol the customer in the new subscriber onboarding programme"
	adviceSeniorSupport = "Assign a dedicated support contact for senior customers"
	adviceEscalate      = "Escalate to the retention team for a personal call"
	shortTenureMonths   = 12
)

type rule struct {
	applies func(pipeline.CustomerRecord) bool
	advice  string
}

var rules = []rule{
	{func(r pipeline.CustomerRecord) bool { return r.Contract == "Month-to-month" }, adviceContract},
	{func(r pipeline.CustomerRecord) bool { return r.PaymentMethod == "Electronic check" }, advicePayment},
	{func(r pipeline.CustomerRecord) bool { return hasInternet(r) && r.TechSupport == "No" }, adviceTechSupport},
	{func(r pipeline.CustomerRecord) bool { return hasInternet(r) && r.OnlineSecurity == "No" }, adviceSecurity},
	{func(r pipeline.CustomerRecord) bool { return r.InternetService == "Fiber optic" }, adviceFiber},
	{func(r pipeline.CustomerRecord) bool { return r.Tenure != nil && *r.Tenure < shortTenureMonths }, adviceOnboarding},
	{func(r pipeline.CustomerRecord) bool { return r.SeniorCitizen == "1" }, adviceSeniorSupport},
}

func hasInternet(r pipeline.CustomerRecord) bool {
	return r.InternetService != "" && r.InternetService != "No"
}

// Advice lists retention actions for a record whose categorical values are
// human-readable labels. Low risk customers get a single engagement note.
func Advice(tier Tier, record pipeline.CustomerRecord) []string {
	if tier == TierLow {
		return []string{adviceKeepEngaged}
	}
	var advice []string
	for _, r := range rules {
		if r.applies(record) {
			advice = append(advice, r.advice)
		}
	}
	if tier == TierHigh {
		advice = append(advice, adviceEscalate)
	}
	if len(advice) == 0 {
		advice = append(advice, adviceKeepEngaged)
	}
	return advice
}
