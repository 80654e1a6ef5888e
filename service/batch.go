package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"churnpredict/pipeline"
	"churnpredict/retention"
)

// Failure describes why one record could not be scored.
type Failure struct {
	Message string             `json:"error"`
	Kind    pipeline.ErrorKind `json:"kind"`
	Field   string             `json:"field,omitempty"`
}

// FailureOf classifies err for a batch result.
func FailureOf(err error) *Failure {
	return &Failure{Message: err.Error(), Kind: pipeline.KindOf(err), Field: pipeline.FieldOf(err)}
}

// BatchResult is the outcome for the record at Index.
type BatchResult struct {
	Index      int                   `json:"index"`
	Assessment *retention.Assessment `json:"assessment,omitempty"`
	Failure    *Failure              `json:"failure,omitempty"`
}

// Decoded is a record paired with the error met while decoding it. Batches
// read from CSV or JSON keep undecodable rows in place this way.
type Decoded struct {
	Record pipeline.CustomerRecord
	Err    error
}

// PredictBatch scores records with bounded parallelism. Results keep the
// input order and a failing record does not affect the others. Records not
// started before ctx is done fail with the context error.
func (s *Service) PredictBatch(ctx context.Context, records []pipeline.CustomerRecord) []BatchResult {
	decoded := make([]Decoded, len(records))
	for i, record := range records {
		decoded[i].Record = record
	}
	return s.PredictDecoded(ctx, decoded)
}

// PredictDecoded is PredictBatch for inputs that may already have failed to
// decode. Those entries are reported at their index without being scored.
func (s *Service) PredictDecoded(ctx context.Context, inputs []Decoded) []BatchResult {
	results := make([]BatchResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, in := range inputs {
		results[i].Index = i
		if in.Err != nil {
			results[i].Failure = FailureOf(in.Err)
			continue
		}
		if err := ctx.Err(); err != nil {
			results[i].Failure = FailureOf(err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Failure = FailureOf(err)
				return nil
			}
			assessment, err := s.Predict(ctx, in.Record)
			if err != nil {
				results[i].Failure = FailureOf(err)
				return nil
			}
			results[i].Assessment = &assessment
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Counts returns how many results succeeded and failed.
func Counts(results []BatchResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Failure != nil {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}
