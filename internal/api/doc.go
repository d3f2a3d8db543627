// Package api exposes the support knowledge base over HTTP.
//
// Public surface:
//
//	POST /api/v1/ask  answer a trader's question
//
// Admin surface (X-Admin-Key protected when a key is configured):
//
//	GET    /api/v1/admin/entries       list manual KB entries
//	POST   /api/v1/admin/entries       create an entry
//	GET    /api/v1/admin/entries/{id}  fetch one entry
//	PUT    /api/v1/admin/entries/{id}  update an entry
//	DELETE /api/v1/admin/entries/{id}  delete an entry
//	POST   /api/v1/admin/ingest        trigger an ingestion run (409 when busy)
//	GET    /api/v1/admin/stats         corpus and entry counts
//
// Probes (/health, /ready) sit outside the middleware stack so they stay
// cheap and unthrottled. Everything else runs through recovery, request-id,
// logging, and per-IP rate limiting middleware, outermost first.
package api
