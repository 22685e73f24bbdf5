package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/content-attestation-engine/engine"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/proof"
)

// maxBodySize bounds request bodies. Verification requests may carry the
// document inline as base64, so the cap is sized for documents, not forms.
const maxBodySize = 64 * 1024 * 1024

// Handler processes attestation API requests. It owns request decoding and
// error-to-status mapping; all pipeline work happens in the engine.
type Handler struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewHandler creates an API handler around an engine.
func NewHandler(eng *engine.Engine, log *slog.Logger) *Handler {
	return &Handler{
		engine: eng,
		log:    log,
	}
}

// AttestRequest is the body of POST /api/v1/attest.
type AttestRequest struct {
	Locator  interfaces.ContentLocator `json:"locator"`
	Metadata json.RawMessage           `json:"metadata"`
}

// VerifyRequest is the body of POST /api/v1/verify. ContentBase64 is
// optional; when empty the content is fetched through the artifact's
// locator.
type VerifyRequest struct {
	Artifact      *interfaces.ProofArtifact `json:"artifact"`
	ContentBase64 string                    `json:"content_base64,omitempty"`
	Metadata      json.RawMessage           `json:"metadata,omitempty"`
}

// errorResponse is the JSON error envelope. Artifact is set when a failed
// attestation still sealed one, such as a quorum failure's negative proof.
type errorResponse struct {
	Error    string                    `json:"error"`
	Artifact *interfaces.ProofArtifact `json:"artifact,omitempty"`
}

// HandleAttest runs one attestation end to end and returns the sealed
// artifact.
//
// URL: POST /api/v1/attest
// Response: 201 with the proof artifact. A quorum failure responds 502 and
// a tracking timeout 504, both with the sealed artifact in the error body.
func (h *Handler) HandleAttest(w http.ResponseWriter, r *http.Request) {
	var req AttestRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err, nil)
		return
	}

	metadata, err := decodeMetadata(req.Metadata)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err, nil)
		return
	}

	artifact, err := h.engine.Attest(r.Context(), req.Locator, metadata)
	if err != nil {
		h.writeError(w, attestStatus(err), err, artifact)
		return
	}

	h.writeArtifact(w, http.StatusCreated, artifact)
}

// HandleVerify re-verifies an artifact and returns the staged report. The
// report is the payload: a FAILED verdict is still a 200.
//
// URL: POST /api/v1/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	if req.Artifact == nil {
		h.writeError(w, http.StatusBadRequest, errors.New("request carries no artifact"), nil)
		return
	}

	var content []byte
	if req.ContentBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid content_base64: %w", err), nil)
			return
		}
		content = raw
	}

	metadata, err := decodeMetadata(req.Metadata)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err, nil)
		return
	}

	report, err := h.engine.Verify(r.Context(), req.Artifact, content, metadata)
	if err != nil {
		h.writeError(w, verifyStatus(err), err, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleProof returns the stored artifact for a document ID.
//
// URL: GET /api/v1/proofs/{document_id}
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewDigestFromHex(chi.URLParam(r, "document_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid document ID: %w", err), nil)
		return
	}

	artifact, err := h.engine.Proof(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interfaces.ErrProofNotFound) {
			status = http.StatusNotFound
		}
		h.writeError(w, status, err, nil)
		return
	}

	h.writeArtifact(w, http.StatusOK, artifact)
}

func decodeBody(r *http.Request, into any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// decodeMetadata turns the raw metadata document into the generic structure
// the canonicalizer hashes. Absent metadata stays nil.
func decodeMetadata(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return metadata, nil
}

// attestStatus maps attestation pipeline failures onto response codes.
func attestStatus(err error) int {
	var (
		verr *interfaces.ValidationError
		qerr *interfaces.QuorumUnreachableError
		terr *interfaces.TimeoutError
	)
	switch {
	case errors.Is(err, engine.ErrOracleRejected):
		return http.StatusUnprocessableEntity
	case errors.As(err, &qerr):
		return http.StatusBadGateway
	case errors.As(err, &terr):
		return http.StatusGatewayTimeout
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrContentNotFound), errors.Is(err, interfaces.ErrCannotServe):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func verifyStatus(err error) int {
	var verr *interfaces.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrContentNotFound), errors.Is(err, interfaces.ErrCannotServe):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeArtifact responds with the artifact's canonical JSON encoding.
func (h *Handler) writeArtifact(w http.ResponseWriter, status int, artifact *interfaces.ProofArtifact) {
	data, err := proof.Encode(artifact)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("Failed to encode response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error, artifact *interfaces.ProofArtifact) {
	h.log.Error("Request failed",
		slog.Int("status", status),
		"err", err)

	h.writeJSON(w, status, errorResponse{
		Error:    err.Error(),
		Artifact: artifact,
	})
}
