package orchestrator

import "errors"

// ErrTurnCapExceeded marks a request that was force-terminated by the
// iteration cap without reaching a terminal verdict (spec.md §4.4 step 5).
var ErrTurnCapExceeded = errors.New("orchestrator: turn cap exceeded")

// ErrCatalogViolation marks a Junior- or Senior-requested probe id that is
// outside the catalog or outside the current route's allowed set (spec.md
// §4.4 step 3, §7). Run records a catalog violation as a transcript note
// and a failed evidence entry and never returns this value; Run returns an
// error only when a Junior or Senior call fails outright (transport error,
// timeout, or a schema violation that persists after retries).
var ErrCatalogViolation = errors.New("orchestrator: catalog violation")
