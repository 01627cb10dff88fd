package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

type classifyRequest struct {
	Reads []readInput `json:"reads"`
}

type readInput struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

type classifyResponse struct {
	BundleVersion string         `json:"bundle_version"`
	Results       []resultOutput `json:"results"`
}

type resultOutput struct {
	ReadID     string             `json:"read_id"`
	Prediction *domain.Prediction `json:"prediction,omitempty"`
	Error      *errorBody         `json:"error,omitempty"`
}

func (s *Server) handleClassify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, domain.ErrInvalidInput)
	}
	if len(req.Reads) == 0 {
		return jsonError(c, domain.ErrInvalidInput)
	}

	reads := make([]domain.Read, len(req.Reads))
	for i, r := range req.Reads {
		reads[i] = domain.Read{ID: r.ID, Sequence: r.Sequence}
	}

	results, err := s.classifier.Classify(c.Request().Context(), reads)
	if err != nil {
		return jsonError(c, err)
	}

	resp := classifyResponse{
		BundleVersion: s.classifier.BundleVersion(),
		Results:       make([]resultOutput, len(results)),
	}
	for i, r := range results {
		out := resultOutput{ReadID: r.ReadID, Prediction: r.Prediction}
		if r.Err != nil {
			out.Error = &errorBody{Kind: domain.ErrorKind(r.Err), Reason: r.Err.Error()}
		}
		resp.Results[i] = out
	}
	return c.JSON(http.StatusOK, resp)
}

type submitJobRequest struct {
	DatasetID string                 `json:"dataset_id"`
	Params    *domain.TrainingParams `json:"params,omitempty"`
}

type jobOutput struct {
	ID            string `json:"id"`
	DatasetID     string `json:"dataset_id"`
	State         string `json:"state"`
	Stage         string `json:"stage,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	ErrorReason   string `json:"error_reason,omitempty"`
	BundleVersion string `json:"bundle_version,omitempty"`
	CreatedAt     string `json:"created_at"`
	StartedAt     string `json:"started_at,omitempty"`
	FinishedAt    string `json:"finished_at,omitempty"`
}

func composeJob(job *domain.TrainingJob) jobOutput {
	out := jobOutput{
		ID:            job.ID,
		DatasetID:     job.DatasetID,
		State:         string(job.State),
		Stage:         job.Stage,
		ErrorKind:     job.ErrorKind,
		ErrorReason:   job.ErrorReason,
		BundleVersion: job.BundleVersion,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
	}
	if !job.StartedAt.IsZero() {
		out.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if !job.FinishedAt.IsZero() {
		out.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleSubmitJob(c echo.Context) error {
	var req submitJobRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, domain.ErrInvalidInput)
	}
	if req.DatasetID == "" {
		return jsonError(c, domain.ErrInvalidInput)
	}

	params := domain.DefaultTrainingParams()
	if req.Params != nil {
		params = *req.Params
	}

	jobID, err := s.trainer.Submit(c.Request().Context(), req.DatasetID, params)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleListJobs(c echo.Context) error {
	jobs, err := s.trainer.List(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	out := make([]jobOutput, len(jobs))
	for i := range jobs {
		out[i] = composeJob(&jobs[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.trainer.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, composeJob(job))
}

func (s *Server) handleCancelJob(c echo.Context) error {
	if err := s.trainer.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return jsonError(c, err)
	}
	job, err := s.trainer.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, composeJob(job))
}

func (s *Server) handleListBundles(c echo.Context) error {
	versions, err := s.bundles.List(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"versions": versions})
}

type bundleOutput struct {
	Version         string `json:"version"`
	EmbedderVersion string `json:"embedder_version"`
	CreatedAt       string `json:"created_at"`
	TaxonCount      int    `json:"taxon_count"`
	Loaded          bool   `json:"loaded"`
}

func (s *Server) handleCurrentBundle(c echo.Context) error {
	bundle, err := s.bundles.Latest(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, bundleOutput{
		Version:         bundle.Version,
		EmbedderVersion: bundle.EmbedderVersion,
		CreatedAt:       bundle.CreatedAt.Format(time.RFC3339),
		TaxonCount:      bundle.Labels.Len(),
		Loaded:          bundle.Version == s.classifier.BundleVersion(),
	})
}
