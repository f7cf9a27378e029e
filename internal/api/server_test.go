package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"msahmm/internal/hmm"
	"msahmm/internal/profile"
)

func newTestEcho(t *testing.T, limiter *rate.Limiter) *echo.Echo {
	t.Helper()
	model, err := profile.NewRandom([]int{4, 6}, 25, 7)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	server := NewServer(model, hmm.Options{Chunks: 1, Workers: 2}, limiter, nil)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestScoreReturnsPerModelLikelihoods(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, nil)
	rec := doJSON(t, e, http.MethodPost, "/v1/score",
		`{"sequences":[{"id":"a","sequence":"ACDEF"},{"sequence":"gky"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("score status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp ScoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode score response: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("expected response id")
	}
	if resp.Models != 2 {
		t.Fatalf("expected 2 models, got %d", resp.Models)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].SequenceID != "a" {
		t.Fatalf("unexpected id: %q", resp.Results[0].SequenceID)
	}
	if resp.Results[1].SequenceID != "seq-1" {
		t.Fatalf("expected fallback id, got %q", resp.Results[1].SequenceID)
	}
	if len(resp.MeanLogLikelihoods) != 2 {
		t.Fatalf("expected 2 means, got %d", len(resp.MeanLogLikelihoods))
	}
	for _, res := range resp.Results {
		if len(res.LogLikelihoods) != 2 {
			t.Fatalf("expected 2 log-likelihoods, got %d", len(res.LogLikelihoods))
		}
		for _, ll := range res.LogLikelihoods {
			if math.IsNaN(ll) || math.IsInf(ll, 0) || ll >= 0 {
				t.Fatalf("implausible log-likelihood %v", ll)
			}
		}
	}
}

func TestScoreValidationErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, nil)

	rec := doJSON(t, e, http.MethodPost, "/v1/score", `{"sequences":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "must not be empty") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/score", `{"sequences":[{"sequence":"  "}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank sequence, got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/score", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestDecodeReturnsStatePath(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, nil)
	rec := doJSON(t, e, http.MethodPost, "/v1/decode",
		`{"sequences":[{"id":"a","sequence":"ACDE"}],"model":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("decode status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp DecodeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != 1 {
		t.Fatalf("expected model 1, got %d", resp.Model)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	res := resp.Results[0]
	if len(res.States) != 5 || len(res.StateIDs) != 5 {
		t.Fatalf("expected path of length 5, got %d/%d", len(res.States), len(res.StateIDs))
	}
	if res.States[len(res.States)-1] != "E" {
		t.Fatalf("expected terminal state at sequence end, got %q", res.States[len(res.States)-1])
	}

	badModel := doJSON(t, e, http.MethodPost, "/v1/decode",
		`{"sequences":[{"sequence":"ACDE"}],"model":9}`)
	if badModel.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad model index, got %d", badModel.Code)
	}
}

func TestPosteriorsSumToOne(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, nil)
	rec := doJSON(t, e, http.MethodPost, "/v1/posteriors",
		`{"sequence":{"id":"a","sequence":"ACDEFG"},"model":0,"chunks":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("posteriors status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp PosteriorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode posterior response: %v", err)
	}
	if len(resp.Posteriors) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(resp.Posteriors))
	}
	if len(resp.States) != profile.NumStates(4) {
		t.Fatalf("expected %d state names, got %d", profile.NumStates(4), len(resp.States))
	}
	for i, row := range resp.Posteriors {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Fatalf("row %d sums to %v", i, sum)
		}
	}
	if resp.LogLikelihood >= 0 {
		t.Fatalf("implausible log-likelihood %v", resp.LogLikelihood)
	}
}

func TestModelInfo(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, nil)
	rec := doJSON(t, e, http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("model status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode model info: %v", err)
	}
	if info.Models != 2 {
		t.Fatalf("expected 2 models, got %d", info.Models)
	}
	if info.States != profile.NumStates(6) {
		t.Fatalf("expected max states %d, got %d", profile.NumStates(6), info.States)
	}
}

func TestRateLimitRejects(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, rate.NewLimiter(rate.Limit(0), 1))
	first := doJSON(t, e, http.MethodGet, "/v1/model", "")
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	second := doJSON(t, e, http.MethodGet, "/v1/model", "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}
