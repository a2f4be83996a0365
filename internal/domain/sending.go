package domain

import "time"

// MaxBatchSize is the provider limit on personalizations per API call.
const MaxBatchSize = 1000

// Message is a single fully-rendered email ready for the provider.
type Message struct {
	To         string            `json:"to"`
	ToName     string            `json:"to_name,omitempty"`
	Subject    string            `json:"subject"`
	HTML       string            `json:"html"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

// PersonalizedMessage is one recipient inside a Batch. Subject and HTML are
// rendered from Variables; Variables is what the provider substitutes into
// the batch template.
type PersonalizedMessage struct {
	To        string            `json:"to"`
	ToName    string            `json:"to_name,omitempty"`
	Subject   string            `json:"subject"`
	HTML      string            `json:"html"`
	Variables map[string]string `json:"variables"`
}

// Batch is the unit of one provider API call: a shared template plus up to
// MaxBatchSize single-recipient personalizations.
type Batch struct {
	CampaignID       string                `json:"campaign_id,omitempty"`
	SubjectTemplate  string                `json:"subject_template"`
	HTMLTemplate     string                `json:"html_template"`
	Personalizations []PersonalizedMessage `json:"personalizations"`
}

// Recipients returns the batch's addresses in order.
func (b *Batch) Recipients() []string {
	out := make([]string, len(b.Personalizations))
	for i, p := range b.Personalizations {
		out[i] = p.To
	}
	return out
}

// SendResult is what the API returns after a successful single send.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}
