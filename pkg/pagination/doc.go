// Package pagination provides offset/limit windows for the paginated catalog
// endpoint and the naming of the batch files they produce.
//
// The catalog API pages with "limit" and "offset" query parameters. A Window
// describes one page request; Next returns the window that follows it, which
// is how consecutive extractions chain without consulting the checkpoint:
//
//	w := pagination.Window{Offset: 0, Limit: 10}
//	w.Query()          // limit=10&offset=0
//	w.Next()           // {Offset: 10, Limit: 10}
//	pagination.BatchFileName(w.Offset) // pokedex_0000000000.parquet
//
// Batch file names embed the offset zero-padded to a fixed width of
// FileNameWidth digits. The name is an artifact handle only: the offset that
// tags loaded rows is passed explicitly from extraction to load.
package pagination
