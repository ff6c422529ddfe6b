package http

import (
	"github.com/go-chi/chi/v5"

	"orchardtrace/batch"
	"orchardtrace/harvest"
	"orchardtrace/orchard"
	"orchardtrace/qrlabel"
	"orchardtrace/registry"
	"orchardtrace/safety"
	"orchardtrace/trace"
)

// RegisterTraceRoutes mounts the public provenance endpoint at the
// path the QR locator points to.
func (s *Server) RegisterTraceRoutes() {
	s.router.Get("/trace/{code}", trace.ResolveQueryHandler(s.DB))
	s.router.Get("/api/trace/{code}", trace.ResolveQueryHandler(s.DB))
}

// RegisterRegistryRoutes mounts chemical registry maintenance.
func (s *Server) RegisterRegistryRoutes(r chi.Router) {
	r.Get("/registry/chemicals", registry.ListRulesQueryHandler(s.DB))
	r.Post("/registry/chemicals", registry.UpsertRuleCommandHandler(s.DB, s.Audit))
	r.Get("/registry/chemicals/{name}", registry.GetRuleQueryHandler(s.DB))
}

// RegisterOrchardRoutes mounts farm, tree and activity-log endpoints.
func (s *Server) RegisterOrchardRoutes(r chi.Router) {
	r.Post("/farmers", orchard.CreateFarmerCommandHandler(s.DB))
	r.Post("/farms", orchard.CreateFarmCommandHandler(s.DB))
	r.Post("/trees", orchard.CreateTreeCommandHandler(s.DB))
	r.Get("/trees/{id}", orchard.GetTreeQueryHandler(s.DB))
	r.Post("/trees/{id}/deactivate", orchard.DeactivateTreeCommandHandler(s.DB, s.Audit))
	r.Post("/trees/{id}/activities", orchard.AppendActivityCommandHandler(s.DB))
	r.Get("/trees/{id}/activities", orchard.ListActivitiesQueryHandler(s.DB))
	r.Get("/trees/{id}/safety", safety.TreeSafetyQueryHandler(s.DB))
}

// RegisterHarvestRoutes mounts the request state machine.
func (s *Server) RegisterHarvestRoutes(r chi.Router) {
	r.Post("/harvest-requests", harvest.SubmitCommandHandler(s.DB, s.Audit))
	r.Get("/harvest-requests", harvest.ListQueryHandler(s.DB))
	r.Get("/harvest-requests/{id}", harvest.GetQueryHandler(s.DB))
	r.Post("/harvest-requests/{id}/approve", harvest.ApproveCommandHandler(s.DB, s.Audit))
	r.Post("/harvest-requests/{id}/reject", harvest.RejectCommandHandler(s.DB, s.Audit))
	r.Post("/harvest-requests/{id}/check-in", harvest.CheckInCommandHandler(s.DB, s.Audit))
	r.Post("/harvest-requests/{id}/complete", harvest.CompleteCommandHandler(s.DB, s.Audit))
}

// RegisterBatchRoutes mounts batch aggregation and identifier issuance.
func (s *Server) RegisterBatchRoutes(r chi.Router) {
	r.Post("/batches", batch.CreateCommandHandler(s.DB, s.Audit))
	r.Get("/batches/{id}", batch.GetQueryHandler(s.DB))
	r.Get("/batches/{id}/manifest.csv", batch.ManifestQueryHandler(s.DB))
	r.Post("/batches/{id}/qr", qrlabel.IssueCommandHandler(s.DB, s.Audit, s.BaseURL))
	r.Get("/batches/{id}/qr/image", qrlabel.ImageQueryHandler(s.DB))
	r.Get("/batches/{id}/qr/label.pdf", qrlabel.LabelPDFQueryHandler(s.DB))
	r.Post("/qr/scan", qrlabel.ScanCommandHandler(s.DB))
}
