package models

import "errors"

// Errors returned by the storage layer and the tree engine. Callers match them with
// errors.Is; the returned errors wrap these with the offending name or path.
var (
	ErrInvalidName      = errors.New("invalid name")
	ErrDuplicateName    = errors.New("session name already exists")
	ErrDuplicateFolder  = errors.New("folder already exists")
	ErrStaleRecord      = errors.New("session no longer exists")
	ErrTemplateMissing  = errors.New("template session no longer exists")
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrCyclicMove       = errors.New("cannot move a node into itself or a descendant")
	ErrRootFolder       = errors.New("operation not allowed on the root folder")
	ErrNotFound         = errors.New("not found")
)
