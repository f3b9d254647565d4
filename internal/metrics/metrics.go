package metrics

import (
	"expvar"
)

var (
	// DocumentsAddedTotal counts documents stored via /add
	DocumentsAddedTotal = expvar.NewInt("documents_added_total")

	// DocumentsDeletedTotal counts successful deletions
	DocumentsDeletedTotal = expvar.NewInt("documents_deleted_total")

	// QueriesTotal counts query requests that passed validation
	QueriesTotal = expvar.NewInt("queries_total")

	// GenerationsFailedTotal counts failed calls to the generation model
	GenerationsFailedTotal = expvar.NewInt("generations_failed_total")

	// StoreErrorsTotal counts failed vector store calls
	StoreErrorsTotal = expvar.NewInt("store_errors_total")

	// ValidationErrorsTotal counts requests rejected as invalid
	ValidationErrorsTotal = expvar.NewInt("validation_errors_total")
)
