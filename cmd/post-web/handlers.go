package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/postpolish/internal/imaging"
	"github.com/fpang/postpolish/internal/pipeline"
)

// maxRequestBytes bounds an upload: a post carries at most nine photos and a
// short note, so 64 MB of base64-encoded JSON is already generous.
const maxRequestBytes = 64 << 20

type server struct {
	orch *pipeline.Orchestrator
}

// handleCreate runs a full create invocation: POST a pipeline.Request (photos
// base64-encoded in JSON), receive a pipeline.Response.
func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Refine != nil {
		httpError(w, http.StatusBadRequest, "create request must not carry a refine block; use /api/post/refine")
		return
	}
	s.run(w, r, req)
}

// handleRefine reworks a prior result: the request must carry a refine block
// with the trace id from the create response.
func (s *server) handleRefine(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Refine == nil {
		httpError(w, http.StatusBadRequest, "refine request missing refine block")
		return
	}
	s.run(w, r, req)
}

func (s *server) run(w http.ResponseWriter, r *http.Request, req *pipeline.Request) {
	prepareImages(req)

	resp, err := s.orch.Run(r.Context(), req)
	if err != nil {
		// Usage and contract errors are the caller's fault.
		switch {
		case errors.Is(err, pipeline.ErrMissingTraceID),
			errors.Is(err, pipeline.ErrImageIndexOutOfRange),
			errors.Is(err, pipeline.ErrUnknownRefineMode):
			httpError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Pipeline invocation failed")
			httpError(w, http.StatusInternalServerError, "pipeline invocation failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*pipeline.Request, bool) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return nil, false
	}

	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	return &req, true
}

// prepareImages sniffs MIME types, attaches EXIF context, and downscales
// uploads that exceed the model input bound. Uploads the client already
// prepared pass through untouched.
func prepareImages(req *pipeline.Request) {
	for i := range req.Images {
		img := &req.Images[i]
		if len(img.Data) == 0 {
			continue
		}
		if img.MIME == "" {
			img.MIME = imaging.SniffMIME(img.Data)
		}
		if img.Context == "" {
			img.Context = imaging.ExtractMeta(img.Data).ContextLine()
		}
		scaled, mime, err := imaging.Downscale(img.Data, img.MIME, imaging.DefaultMaxDimension)
		if err != nil {
			log.Warn().Err(err).Int("image", i).Msg("Downscale failed, sending original bytes")
			continue
		}
		img.Data, img.MIME = scaled, mime
	}
	for i := range req.ReferenceImages {
		ref := &req.ReferenceImages[i]
		if ref.MIME == "" && len(ref.Data) > 0 {
			ref.MIME = imaging.SniffMIME(ref.Data)
		}
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
