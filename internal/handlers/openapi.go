package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description in YAML and JSON. The JSON form is
// derived from the YAML once, at construction.
type OpenAPIHandler struct {
	yamlDoc []byte
	jsonDoc []byte
	jsonErr error
}

// NewOpenAPIHandler creates a handler over an in-memory YAML document.
func NewOpenAPIHandler(spec []byte) *OpenAPIHandler {
	h := &OpenAPIHandler{yamlDoc: spec}
	if len(spec) > 0 {
		h.jsonDoc, h.jsonErr = yamlToJSON(spec)
	}
	return h
}

func yamlToJSON(doc []byte) ([]byte, error) {
	var v map[string]any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("parse openapi yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode openapi json: %w", err)
	}
	return out, nil
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods(http.MethodGet)
}

// ServeYAML serves the OpenAPI document in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	if len(h.yamlDoc) == 0 {
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(h.yamlDoc)
}

// ServeJSON serves the OpenAPI document converted to JSON
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	switch {
	case len(h.yamlDoc) == 0:
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
	case h.jsonErr != nil:
		http.Error(w, "Failed to parse OpenAPI specification", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(h.jsonDoc)
	}
}
