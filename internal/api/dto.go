package api

// SequenceInput is one sequence submitted for evaluation.
type SequenceInput struct {
	ID       string `json:"id,omitempty"`
	Sequence string `json:"sequence"`
}

// ScoreRequest asks for per-model log-likelihoods of a batch of sequences.
type ScoreRequest struct {
	Sequences []SequenceInput `json:"sequences"`
	// Chunks overrides the server's chunk count for this request. 0 keeps
	// the server default.
	Chunks int `json:"chunks,omitempty"`
}

// ScoreResult holds the log-likelihood of one sequence under every model.
type ScoreResult struct {
	SequenceID     string    `json:"sequence_id"`
	LogLikelihoods []float64 `json:"log_likelihoods"`
	// BestModel is the index of the highest-scoring model.
	BestModel int `json:"best_model"`
}

// ScoreResponse is the body returned by POST /v1/score. MeanLogLikelihoods
// holds the batch mean per model, a quick model-comparison summary.
type ScoreResponse struct {
	ID                 string        `json:"id"`
	Object             string        `json:"object"`
	Models             int           `json:"models"`
	Results            []ScoreResult `json:"results"`
	MeanLogLikelihoods []float64     `json:"mean_log_likelihoods"`
}

// DecodeRequest asks for Viterbi state paths.
type DecodeRequest struct {
	Sequences []SequenceInput `json:"sequences"`
	// Model selects which profile decodes the sequences. Defaults to 0.
	Model int `json:"model,omitempty"`
}

// DecodeResult is the most likely state path for one sequence.
type DecodeResult struct {
	SequenceID string   `json:"sequence_id"`
	Score      float64  `json:"score"`
	States     []string `json:"states"`
	StateIDs   []int32  `json:"state_ids"`
}

// DecodeResponse is the body returned by POST /v1/decode.
type DecodeResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Model   int            `json:"model"`
	Results []DecodeResult `json:"results"`
}

// PosteriorRequest asks for per-position state posteriors of one sequence.
type PosteriorRequest struct {
	Sequence SequenceInput `json:"sequence"`
	Model    int           `json:"model,omitempty"`
	Chunks   int           `json:"chunks,omitempty"`
}

// PosteriorResponse is the body returned by POST /v1/posteriors. Posteriors
// has one row per sequence position, one column per model state.
type PosteriorResponse struct {
	ID            string      `json:"id"`
	Object        string      `json:"object"`
	Model         int         `json:"model"`
	LogLikelihood float64     `json:"log_likelihood"`
	States        []string    `json:"states"`
	Posteriors    [][]float64 `json:"posteriors"`
}

// ModelInfo describes the loaded profile set.
type ModelInfo struct {
	Object   string `json:"object"`
	Models   int    `json:"models"`
	Lengths  []int  `json:"lengths"`
	Alphabet int    `json:"alphabet"`
	States   int    `json:"max_states"`
}

// ResponseError is the error payload wrapped under the "error" key.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
