package templates

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"xbanner/core"
	"xbanner/stores"
)

var validate = validator.New()

func HandleListTemplates(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := sync.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list templates"})
			return
		}

		// Return an empty slice instead of null when there are no templates.
		if templates == nil {
			templates = []*core.SavedTemplate{}
		}
		render.JSON(w, r, templates)
	}
}

func HandleGetTemplate(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		template, err := sync.Get(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"id":    id,
			}).Warn("Failed to get template")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Template not found"})
			return
		}
		render.JSON(w, r, template)
	}
}

func HandleSaveTemplate(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithError(err).Error("Failed to read request body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		var template core.SavedTemplate
		if err := json.Unmarshal(body, &template); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid template JSON"})
			return
		}

		// The path owns the identity.
		template.ID = id
		now := time.Now().UnixMilli()
		if template.CreatedAt == 0 {
			template.CreatedAt = now
		}
		template.UpdatedAt = now

		if err := validate.Struct(&template); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid template: " + err.Error()})
			return
		}

		// Local durability is required; the cloud push behind Save is
		// best-effort and never blocks this response.
		if err := sync.Save(r.Context(), &template); err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"id":    id,
			}).Error("Failed to save template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save template"})
			return
		}
		render.JSON(w, r, &template)
	}
}

func HandleDeleteTemplate(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		if err := sync.Delete(r.Context(), id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"id":    id,
			}).Error("Failed to delete template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete template"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}

func HandleImportTemplates(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var templates []*core.SavedTemplate
		if err := json.NewDecoder(r.Body).Decode(&templates); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid template data"})
			return
		}
		defer r.Body.Close()

		for _, t := range templates {
			if err := validate.Struct(t); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Invalid template: " + err.Error()})
				return
			}
		}

		if err := sync.Import(r.Context(), templates); err != nil {
			logrus.WithError(err).Error("Failed to import templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to import templates"})
			return
		}
		render.JSON(w, r, map[string]int{"imported": len(templates)})
	}
}

func HandleExportTemplates(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := sync.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to export templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export templates"})
			return
		}
		if templates == nil {
			templates = []*core.SavedTemplate{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="xbanner-templates.json"`)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(templates); err != nil {
			logrus.WithError(err).Error("Failed to write template export")
		}
	}
}

func HandleSyncTemplates(sync *stores.CloudSync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := sync.LoadFromCloud(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to sync templates from cloud")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Failed to sync templates from cloud"})
			return
		}
		if templates == nil {
			templates = []*core.SavedTemplate{}
		}
		render.JSON(w, r, templates)
	}
}
