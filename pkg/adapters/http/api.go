package http

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var rawSpec []byte

var loadSwagger = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("error loading OpenAPI document: %w", err)
	}
	return doc, nil
})

// GetSwagger returns the parsed OpenAPI document served at /openapi.yaml.
func GetSwagger() (*openapi3.T, error) {
	return loadSwagger()
}

// BatchAccepted is the response of a started batch.
type BatchAccepted struct {
	BatchID string `json:"batch_id"`
}

// Preview is a rendered, unpersisted token.
type Preview struct {
	ComboKey domain.ComboKey      `json:"combo_key"`
	Image    []byte               `json:"image"`
	Metadata domain.TokenMetadata `json:"metadata"`
}

// Error is the JSON error body.
type Error struct {
	Error string      `json:"error"`
	Code  domain.Code `json:"code,omitempty"`
}

// ServerInterface lists the operations of the OpenAPI document.
type ServerInterface interface {
	// (POST /generate)
	StartBatch(w http.ResponseWriter, r *http.Request)
	// (POST /generate/stop)
	CancelBatch(w http.ResponseWriter, r *http.Request)
	// (GET /progress)
	GetProgress(w http.ResponseWriter, r *http.Request)
	// (GET /events)
	SubscribeEvents(w http.ResponseWriter, r *http.Request)
	// (GET /tokens)
	ListTokens(w http.ResponseWriter, r *http.Request)
	// (GET /tokens/{tokenId})
	GetToken(w http.ResponseWriter, r *http.Request, tokenID int64)
	// (POST /preview)
	PreviewToken(w http.ResponseWriter, r *http.Request)
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetInfo(w http.ResponseWriter, r *http.Request)
}

// HandlerFromMux registers the operations of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	r.Post("/generate", si.StartBatch)
	r.Post("/generate/stop", si.CancelBatch)
	r.Get("/progress", si.GetProgress)
	r.Get("/events", si.SubscribeEvents)
	r.Get("/tokens", si.ListTokens)
	r.Get("/tokens/{tokenId}", func(w http.ResponseWriter, req *http.Request) {
		var tokenID int64
		err := runtime.BindStyledParameterWithOptions("simple", "tokenId", chi.URLParam(req, "tokenId"), &tokenID,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			writeError(w, http.StatusBadRequest, "", fmt.Errorf("invalid format for parameter tokenId: %w", err))
			return
		}
		si.GetToken(w, req, tokenID)
	})
	r.Post("/preview", si.PreviewToken)
	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	return r
}
