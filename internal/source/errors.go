package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFetchInProgress is returned when a load-more request for a category is
// issued while the previous one has not resolved yet
var ErrFetchInProgress = errors.New("fetch already in progress for category")

// InvalidCategoryError reports a category id outside the known set
type InvalidCategoryError struct {
	ID string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category: %s", e.ID)
}

// SourceUnavailableError means every configured mirror failed for a query
type SourceUnavailableError struct {
	Query        string
	MirrorErrors []error
}

func (e *SourceUnavailableError) Error() string {
	msgs := make([]string, 0, len(e.MirrorErrors))
	for _, err := range e.MirrorErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all mirrors failed for %q: %s", e.Query, strings.Join(msgs, "; "))
}

func (e *SourceUnavailableError) Unwrap() []error {
	return e.MirrorErrors
}
