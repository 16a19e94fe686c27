package pagination

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces template selection to 'quire.pagination'.
func tracer() tracing.Trace {
	return tracing.Select("quire.pagination")
}
