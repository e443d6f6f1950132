// Package banner serves server-side rasterization: preview renders of a
// posted template at arbitrary sizes, and full-resolution export of the
// 1500×500 banner.
package banner

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"xbanner/core"
	"xbanner/template"
)

type renderRequest struct {
	Template core.SavedTemplate `json:"template"`
	Width    float64            `json:"width"`
	Height   float64            `json:"height"`
}

type exportRequest struct {
	Template core.SavedTemplate `json:"template"`
	Format   string             `json:"format"`
	Quality  float64            `json:"quality"`
}

// HandleRenderPreview reconstructs the posted template at the requested
// size and returns a PNG.
func HandleRenderPreview(deps template.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid render request"})
			return
		}
		defer r.Body.Close()

		if req.Width <= 0 {
			req.Width = 300
		}
		if req.Height <= 0 {
			req.Height = 100
		}

		s, err := template.Reconstruct(r.Context(), &req.Template, req.Width, req.Height, deps)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		defer s.Close()

		img, err := s.ExportRaster(r.Context(), "png", 0, 1)
		if err != nil {
			logrus.WithError(err).Error("Failed to render template preview")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to render preview"})
			return
		}
		writeImage(w, img, "image/png")
	}
}

// HandleExportBanner rasterizes the posted template at the full 1500×500
// resolution, as PNG or JPEG.
func HandleExportBanner(deps template.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid export request"})
			return
		}
		defer r.Body.Close()

		contentType := "image/png"
		switch req.Format {
		case "", "png":
			req.Format = "png"
		case "jpeg", "jpg":
			contentType = "image/jpeg"
		default:
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Format must be png or jpeg"})
			return
		}

		// Export always targets the authoritative resolution; previews are
		// scaled views, never alternate "true" sizes.
		s, err := template.Reconstruct(r.Context(), &req.Template, core.CanvasWidth, core.CanvasHeight, deps)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		defer s.Close()

		img, err := s.ExportRaster(r.Context(), req.Format, req.Quality, 1)
		if err != nil {
			logrus.WithError(err).Error("Failed to export banner")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export banner"})
			return
		}
		writeImage(w, img, contentType)
	}
}

func writeImage(w http.ResponseWriter, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logrus.WithError(err).Error("Failed to write image response")
	}
}
