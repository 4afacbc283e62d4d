// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprops/internal/calc"
	"github.com/woozymasta/geoprops/internal/geo"
)

const (
	mimeGeoJSON = "application/geo+json"
	mimeWebP    = "image/webp"

	rootMessage      = "Successful response from the backend root path."
	detailTooLarge   = "Request payload is too large."
	detailUnreadable = "Request payload could not be read."
	detailInternal   = "Internal error while calculating feature properties."
)

type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error,omitempty"`
}

// Routes registers the service endpoints on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HandleRoot)
	mux.HandleFunc("POST /calculate_properties", s.HandleCalculate)
	mux.HandleFunc("POST /preview", s.HandlePreview)
	return mux
}

// HandleRoot reports that the service is up.
func (s *ServerContext) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mimeJSON, map[string]string{"API Message": rootMessage})
}

// HandleCalculate validates the posted feature and returns it with area, centroid and bbox.
func (s *ServerContext) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	out, derived, err := s.Calculator.Process(payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	log.Debug().
		Str("request_id", requestID(r)).
		Str("geometry", out.Geometry.Type).
		Float64("area", derived.Area).
		Str("centroid_geohash", geo.Geohash(s.Calculator.Transformer().Source(), derived.Centroid)).
		Floats64("bbox", out.BBox).
		Msg("Feature properties calculated")

	writeJSON(w, http.StatusOK, mimeGeoJSON, out)
}

// HandlePreview validates the posted feature and returns a WebP rendering of its geometry.
func (s *ServerContext) HandlePreview(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	f, err := s.Calculator.Validate(payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := geo.ToEngine(f.Geometry)
	if err != nil {
		s.writeError(w, r, errors.NewAssertionErrorWithWrappedErrf(err, "validated geometry failed to materialize"))
		return
	}

	img, err := s.Renderer.Render(g)
	if err != nil {
		if errors.IsAssertionFailure(err) {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, mimeJSON, errorBody{
			Detail: "GeoJSON Feature geometry cannot be rendered: " + err.Error(),
			Error:  calc.KindInvalidGeometry.String(),
		})
		return
	}

	var buf bytes.Buffer
	if err := s.Renderer.Encode(&buf, img); err != nil {
		s.writeError(w, r, errors.NewAssertionErrorWithWrappedErrf(err, "encode preview"))
		return
	}

	w.Header().Set("Content-Type", mimeWebP)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// readPayload reads the request body within the configured size limit.
// On failure the response is already written.
func (s *ServerContext) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := http.MaxBytesReader(w, r.Body, s.Config.Limits.MaxBodyBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().
				Str("request_id", requestID(r)).
				Int64("limit", tooLarge.Limit).
				Msg("Request payload rejected: too large")
			writeJSON(w, http.StatusRequestEntityTooLarge, mimeJSON, errorBody{
				Detail: detailTooLarge,
				Error:  calc.KindInvalidGeoJSON.String(),
			})
			return nil, false
		}

		log.Warn().Err(err).Str("request_id", requestID(r)).Msg("Failed to read request payload")
		writeJSON(w, http.StatusBadRequest, mimeJSON, errorBody{Detail: detailUnreadable})
		return nil, false
	}

	if e := log.Debug(); e.Enabled() {
		compacted := s.compact(payload)
		if json.Valid(compacted) {
			e.RawJSON("payload", compacted)
		} else {
			e.Bytes("payload", compacted)
		}
		e.Str("request_id", requestID(r)).Msg("Request payload received")
	}

	return payload, true
}

// writeError maps pipeline errors to responses: classified client errors are 400,
// everything else is an internal fault.
func (s *ServerContext) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *calc.ValidationError
	if errors.As(err, &ve) {
		log.Warn().
			Err(err).
			Str("request_id", requestID(r)).
			Stringer("kind", ve.Kind).
			Msg("Feature rejected")

		writeJSON(w, http.StatusBadRequest, mimeJSON, errorBody{Detail: ve.Detail, Error: ve.Kind.String()})
		return
	}

	log.Error().
		Err(err).
		Str("request_id", requestID(r)).
		Bool("assertion", errors.IsAssertionFailure(err)).
		Msg("Feature processing failed")

	writeJSON(w, http.StatusInternalServerError, mimeJSON, errorBody{Detail: detailInternal})
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, detailInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_, _ = w.Write(data)
}
