package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stageline/internal/apperr"
	"stageline/internal/engine"
)

const defaultBasePath = "/v1"

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"card not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"reason\":\"stage_id required\"}"`
}

type requestKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the pipeline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("server: jwt secret not configured")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema violations are client input errors like engine validation.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			reasons := make([]string, 0, len(errs))
			for _, err := range errs {
				reasons = append(reasons, err.Error())
			}
			details = map[string]any{"errors": reasons}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	router.Handle("/metrics", promhttp.Handler())

	hcfg := huma.DefaultConfig("Stageline API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStages(group, cfg.Engine, cfg.Auth)
	registerKanban(group, cfg.Engine)
	registerCards(group, cfg.Engine)
	registerTimeline(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(started),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine failures onto the error envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ae *apperr.AppError
	if !errors.As(err, &ae) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
	var details map[string]any
	if ae.Details != "" {
		details = map[string]any{"reason": ae.Details}
	}
	switch ae.Type {
	case apperr.TypeNotFound:
		return newAPIError(http.StatusNotFound, string(ae.Type), ae.Message, details)
	case apperr.TypeConflict:
		return newAPIError(http.StatusConflict, string(ae.Type), ae.Message, details)
	case apperr.TypeValidation:
		return newAPIError(http.StatusBadRequest, string(ae.Type), ae.Message, details)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	errSchema := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: errSchema},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Stageline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}
