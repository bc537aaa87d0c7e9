package http

import (
	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/identity"

	"insights-export/internal/core/ports"
)

func SetupRoutes(exportService ports.AuthorizedExportService) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)

	// Apply identity middleware to all API routes
	api := router.PathPrefix("/api/export/v1").Subrouter()
	api.Use(identity.EnforceIdentity)

	registerExportRoutes(api, NewExportHandler(exportService))

	return router
}

func registerExportRoutes(api *mux.Router, handler *ExportHandler) {
	api.HandleFunc("/exports", handler.CreateExport).Methods("POST")
	api.HandleFunc("/exports", handler.ListExports).Methods("GET")
	api.HandleFunc("/exports/{id}", handler.GetExport).Methods("GET")
	api.HandleFunc("/exports/{id}", handler.DeleteExport).Methods("DELETE")

	// Export driving operations
	api.HandleFunc("/exports/{id}/step", handler.StepExport).Methods("POST")
	api.HandleFunc("/exports/{id}/run", handler.RunExport).Methods("POST")
	api.HandleFunc("/exports/{id}/finalize", handler.FinalizeExport).Methods("POST")
	api.HandleFunc("/exports/{id}/download", handler.DownloadExport).Methods("GET")
}
