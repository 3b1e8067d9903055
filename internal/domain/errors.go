package domain

import "errors"

// ErrCatalogNotFound indicates the question document could not be located in
// the backing store. Callers going through catalog.LoadBestEffort never see
// it; they get the empty catalog instead.
var ErrCatalogNotFound = errors.New("question catalog not found")
