package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Result statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome for one identifier
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	// Kind is the calendar error kind of a failure, when known
	Kind string `json:"kind,omitempty"`
}

// Summary aggregates the results of one batch call
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray accepts a single identifier or a list of them, as sent
// in JSON tool arguments. Surrounding whitespace is trimmed and duplicates
// are dropped, keeping the first occurrence.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var raw []string
	switch v := param.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		raw = make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			if len(raw) == 1 {
				return nil, fmt.Errorf("%s cannot be empty", paramName)
			}
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		ids = append(ids, s)
	}
	return ids, nil
}

// Process runs fn for each id in order. kindOf, when non-nil, labels
// failures. Once ctx is done the remaining ids fail without calling fn.
func Process(ctx context.Context, ids []string, fn func(ctx context.Context, id string) (string, error), kindOf func(error) string) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			results = append(results, NewErrorResult(id, err, ""))
			continue
		}

		res, err := fn(ctx, id)
		if err != nil {
			kind := ""
			if kindOf != nil {
				kind = kindOf(err)
			}
			results = append(results, NewErrorResult(id, err, kind))
			continue
		}
		results = append(results, NewSuccessResult(id, res))
	}
	return results
}

// Summarize counts successes and failures
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), Results: results}
	for _, r := range results {
		if r.Status == StatusSuccess {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

// FormatResults renders the summary as indented JSON
func FormatResults(results []Result) string {
	out, _ := json.MarshalIndent(Summarize(results), "", "  ")
	return string(out)
}

func NewSuccessResult(id, message string) Result {
	return Result{ID: id, Status: StatusSuccess, Result: message}
}

func NewErrorResult(id string, err error, kind string) Result {
	return Result{ID: id, Status: StatusError, Error: err.Error(), Kind: kind}
}
