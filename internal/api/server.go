// Package api exposes the scoring engines over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"msahmm/internal/hmm"
	"msahmm/internal/logger"
	"msahmm/internal/profile"
	"msahmm/internal/seqio"
)

// Server serves likelihood, posterior and Viterbi queries against a loaded
// profile set.
type Server struct {
	model   *profile.Model
	chunks  int
	workers int
	limiter *rate.Limiter
	log     logger.Logger
}

// NewServer wires a server around model. opts supplies the default engine
// options; limiter may be nil to disable rate limiting.
func NewServer(model *profile.Model, opts hmm.Options, limiter *rate.Limiter, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	chunks := opts.Chunks
	if chunks < 1 {
		chunks = 1
	}
	return &Server{
		model:   model,
		chunks:  chunks,
		workers: opts.Workers,
		limiter: limiter,
		log:     log,
	}
}

// Register mounts the API routes on e.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/v1", s.rateLimit)
	g.POST("/score", s.handleScore)
	g.POST("/decode", s.handleDecode)
	g.POST("/posteriors", s.handlePosteriors)
	g.GET("/model", s.handleModel)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many requests", "", "")
		}
		return next(c)
	}
}

func (s *Server) engine(chunks int) (*hmm.Engine, error) {
	if chunks < 1 {
		chunks = s.chunks
	}
	return hmm.New(s.model, hmm.Options{Chunks: chunks, Workers: s.workers})
}

func (s *Server) handleScore(c *echo.Context) error {
	req, err := decodeJSON[ScoreRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	records, err := toRecords(req.Sequences)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	chunks := req.Chunks
	if chunks < 1 {
		chunks = s.chunks
	}
	batch, err := seqio.Encode(records, s.model.NumModels())
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	batch = seqio.PadTo(batch, chunks)

	eng, err := s.engine(chunks)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	_, loglik, err := eng.Forward(batch)
	if err != nil {
		return s.writeEngineError(c, err)
	}

	results := make([]ScoreResult, len(records))
	for b, rec := range records {
		lls := make([]float64, s.model.NumModels())
		best := 0
		for k := range lls {
			lls[k] = loglik.At(k, b)
			if lls[k] > lls[best] {
				best = k
			}
		}
		results[b] = ScoreResult{SequenceID: rec.ID, LogLikelihoods: lls, BestModel: best}
	}

	means, err := hmm.MeanLogLik(loglik, nil)
	if err != nil {
		return s.writeEngineError(c, err)
	}

	s.log.Info("scored batch", "sequences", len(records), "chunks", chunks)
	return c.JSON(http.StatusOK, ScoreResponse{
		ID:                 "score-" + uuid.NewString(),
		Object:             "score.batch",
		Models:             s.model.NumModels(),
		Results:            results,
		MeanLogLikelihoods: means,
	})
}

func (s *Server) handleDecode(c *echo.Context) error {
	req, err := decodeJSON[DecodeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	records, err := toRecords(req.Sequences)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Model < 0 || req.Model >= s.model.NumModels() {
		return writeError(c, http.StatusBadRequest, "invalid_request_error",
			"model index out of range", "model", "")
	}

	batch, err := seqio.Encode(records, s.model.NumModels())
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	eng, err := s.engine(1)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	paths, err := eng.Decode(batch, nil)
	if err != nil {
		return s.writeEngineError(c, err)
	}

	results := make([]DecodeResult, len(records))
	for b, rec := range records {
		n := len(rec.Seq) + 1
		ids := make([]int32, n)
		names := make([]string, n)
		for i := 0; i < n; i++ {
			ids[i] = paths.At(req.Model, b, i)
			names[i] = s.model.StateName(req.Model, int(ids[i]))
		}
		results[b] = DecodeResult{SequenceID: rec.ID, States: names, StateIDs: ids}
	}

	s.log.Info("decoded batch", "sequences", len(records), "model", req.Model)
	return c.JSON(http.StatusOK, DecodeResponse{
		ID:      "decode-" + uuid.NewString(),
		Object:  "decode.batch",
		Model:   req.Model,
		Results: results,
	})
}

func (s *Server) handlePosteriors(c *echo.Context) error {
	req, err := decodeJSON[PosteriorRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	records, err := toRecords([]SequenceInput{req.Sequence})
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Model < 0 || req.Model >= s.model.NumModels() {
		return writeError(c, http.StatusBadRequest, "invalid_request_error",
			"model index out of range", "model", "")
	}

	chunks := req.Chunks
	if chunks < 1 {
		chunks = s.chunks
	}
	batch, err := seqio.Encode(records, s.model.NumModels())
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	batch = seqio.PadTo(batch, chunks)

	eng, err := s.engine(chunks)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	post, loglik, err := eng.Posteriors(batch)
	if err != nil {
		return s.writeEngineError(c, err)
	}

	q := s.model.StateCount(req.Model)
	names := make([]string, q)
	for i := range names {
		names[i] = s.model.StateName(req.Model, i)
	}
	n := len(records[0].Seq) + 1
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, q)
		copy(row, post.Row(req.Model, 0, i)[:q])
		rows[i] = row
	}

	return c.JSON(http.StatusOK, PosteriorResponse{
		ID:            "post-" + uuid.NewString(),
		Object:        "posterior.matrix",
		Model:         req.Model,
		LogLikelihood: loglik.At(req.Model, 0),
		States:        names,
		Posteriors:    rows,
	})
}

func (s *Server) handleModel(c *echo.Context) error {
	lengths := make([]int, s.model.NumModels())
	for k := range lengths {
		lengths[k] = s.model.Length(k)
	}
	return c.JSON(http.StatusOK, ModelInfo{
		Object:   "model.profile_set",
		Models:   s.model.NumModels(),
		Lengths:  lengths,
		Alphabet: s.model.AlphabetSize(),
		States:   s.model.MaxStateCount(),
	})
}

func (s *Server) writeEngineError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, hmm.ErrChunkDivisibility), errors.Is(err, hmm.ErrEmptySequence),
		errors.Is(err, hmm.ErrModelMismatch):
		return writeBadRequest(c, err.Error())
	default:
		s.log.Error("engine failure", "error", err)
		return writeServerError(c, err.Error())
	}
}
