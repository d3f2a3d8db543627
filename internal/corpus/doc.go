// Package corpus manages the embedding-indexed knowledge corpus.
//
// The corpus is a single PostgreSQL table of knowledge records, each holding
// the text that was embedded, its vector, and source metadata. Records are
// written only by the ingestion pipeline and read by the search engine.
//
// # Store
//
// Store persists records keyed by a stable identifier:
//
//	Upsert(ctx, id, content, embedding, metadata)  insert-or-replace by id
//	Insert(ctx, content, embedding, metadata)      legacy append, minted id
//	ScanAll(ctx)                                   full materialization
//	Count(ctx)                                     corpus size
//
// Upsert is idempotent: repeated calls with identical arguments converge to
// one record. The metadata sourceId field always mirrors the identifier.
// Store depends on the Querier interface so tests can substitute a mock and
// production can use the pgx-backed implementation in this package.
//
// # Engine
//
// Engine scores a query vector against every stored record by cosine
// similarity. It is deliberately brute-force: at the corpus scale this
// system targets (hundreds to low thousands of records) a linear scan is
// simpler and fast enough. The Search contract is stable, so an
// approximate-nearest-neighbor index can replace the scan later without
// touching callers.
//
// Malformed vectors (zero magnitude, wrong dimensionality) score 0 rather
// than erroring, so one bad record can never break a query.
package corpus
