package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"scootspot/internal/occupancy"
	"scootspot/internal/types"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzhttp"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxUploadBytes = 20 << 20

	LivenessText = "Scooter occupancy API is running!"

	imageFieldName = "image"
)

type Handler struct {
	Svc            *occupancy.Service
	MaxUploadBytes int64
}

func NewHandler(svc *occupancy.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		Svc:            svc,
		MaxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, LivenessText)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("POST /count", h.handleCount)
	mux.HandleFunc("GET /fetch", h.handleFetch)
	mux.HandleFunc("POST /change_total_spots", h.handleChangeTotalSpots)
	mux.HandleFunc("POST /new_location", h.handleNewLocation)
	return logRequests(gzhttp.GzipHandler(mux))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		writeError(w, types.Validation("location_id is required"))
		return
	}
	archive := strings.EqualFold(r.URL.Query().Get("upload_to_s3"), "true")

	image, err := h.readImage(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.Svc.Ingest(r.Context(), locationID, image, archive)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{
		"message": "Count updated for location " + locationID,
		"count":   res.Count,
	}
	if res.ArchivedKey != "" {
		body["archived_key"] = res.ArchivedKey
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	image, err := h.readImage(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	counts, err := h.Svc.Count(r.Context(), image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"electric_scooters": counts[types.ClassElectricScooter],
		"bicycles":          counts[types.ClassBicycle],
	})
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	views, err := h.Svc.ListLocations(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list locations")
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   errMessage(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"total_locations": len(views),
		"locations":       views,
	})
}

func (h *Handler) handleChangeTotalSpots(w http.ResponseWriter, r *http.Request) {
	locationID := r.FormValue("location_id")
	if locationID == "" {
		writeError(w, types.Validation("location_id is required"))
		return
	}
	total, err := occupancy.ParseInt("new_total_spots", r.FormValue("new_total_spots"))
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := h.Svc.AdjustCapacity(r.Context(), locationID, total)
	if err != nil {
		writeError(w, err)
		return
	}
	updated := map[string]any{"total_spots": total}
	if loc.LastUpdated != "" {
		updated["last_updated"] = loc.LastUpdated
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Total spots updated for location " + locationID,
		"updated_attributes": updated,
	})
}

func (h *Handler) handleNewLocation(w http.ResponseWriter, r *http.Request) {
	reg := occupancy.Registration{
		LocationID:   r.FormValue("location_id"),
		LocationName: r.FormValue("location_name"),
	}
	if reg.LocationID == "" || reg.LocationName == "" {
		writeError(w, types.Validation("location_id, location_name and total_spots are required"))
		return
	}
	var err error
	if reg.TotalSpots, err = occupancy.ParseInt("total_spots", r.FormValue("total_spots")); err != nil {
		writeError(w, err)
		return
	}
	if raw := r.FormValue("initial_count"); raw != "" {
		if reg.InitialCount, err = occupancy.ParseInt("initial_count", raw); err != nil {
			writeError(w, err)
			return
		}
	}
	mode := occupancy.Upsert
	if strings.EqualFold(r.FormValue("if_absent"), "true") {
		mode = occupancy.CreateIfAbsent
	}

	loc, err := h.Svc.RegisterLocation(r.Context(), reg, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Location " + reg.LocationID + " registered",
		"response": loc,
	})
}

// readImage returns the upload from a multipart `image` field, or the raw body otherwise.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	defer func() {
		_ = r.Body.Close()
	}()

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
			return nil, uploadError(err)
		}
		f, _, err := r.FormFile(imageFieldName)
		if err != nil {
			return nil, types.Validation("multipart field %q is required", imageFieldName)
		}
		defer func() {
			_ = f.Close()
		}()
		src = f
	}
	image, err := io.ReadAll(src)
	if err != nil {
		return nil, uploadError(err)
	}
	if len(image) == 0 {
		return nil, types.Validation("image body is required")
	}
	return image, nil
}

var errTooLarge = errors.New("upload too large")

func uploadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return types.Err(errTooLarge, err, "limit is %d bytes", mbe.Limit)
	}
	return types.Err(types.ErrValidation, err, "read upload")
}

func statusFor(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch types.KindOf(err) {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindUnknownLocation:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	case types.KindDetector:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errMessage flattens joined errors onto one line.
func errMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.WithError(err).WithField("kind", types.KindOf(err).String()).Error("Request failed")
	}
	writeJSON(w, code, map[string]any{"error": errMessage(err)})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	})
}
