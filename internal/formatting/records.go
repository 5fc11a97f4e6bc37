package formatting

import (
	"time"

	"labbot/internal/labbot"
	pkgstrings "labbot/pkg/strings"
)

// ResultRecord is the serialized form of one labbot.UserResult.
type ResultRecord struct {
	User        string     `json:"user" yaml:"user"`
	Patient     string     `json:"patient,omitempty" yaml:"patient,omitempty"`
	AccessToken string     `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
	Scope       string     `json:"scope,omitempty" yaml:"scope,omitempty"`
	Expiry      *time.Time `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Response    string     `json:"response,omitempty" yaml:"response,omitempty"`
	HasResponse bool       `json:"hasResponse" yaml:"hasResponse"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// ResultSummary wraps the records with counts.
type ResultSummary struct {
	Results   []ResultRecord `json:"results" yaml:"results"`
	Count     int            `json:"count" yaml:"count"`
	Succeeded int            `json:"succeeded" yaml:"succeeded"`
	Failed    int            `json:"failed" yaml:"failed"`
}

// NewResultRecords converts results, masking tokens unless showTokens is set.
func NewResultRecords(results []labbot.UserResult, showTokens bool) []ResultRecord {
	records := make([]ResultRecord, 0, len(results))
	for _, r := range results {
		rec := ResultRecord{
			User:        r.User.ID,
			Response:    r.Response,
			HasResponse: r.HasResponse,
		}
		if r.Token != nil {
			rec.Patient = r.Token.Patient
			rec.Scope = r.Token.Scope
			rec.AccessToken = r.Token.AccessToken
			if !showTokens {
				rec.AccessToken = pkgstrings.MaskSecret(rec.AccessToken)
			}
			if !r.Token.Expiry.IsZero() {
				expiry := r.Token.Expiry
				rec.Expiry = &expiry
			}
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		records = append(records, rec)
	}
	return records
}

// Summarize builds a ResultSummary for results.
func Summarize(results []labbot.UserResult, showTokens bool) ResultSummary {
	s := ResultSummary{Results: NewResultRecords(results, showTokens), Count: len(results)}
	for _, r := range results {
		if r.Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}
