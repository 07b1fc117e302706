package firestore

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
)

// notFoundError builds a repository error for documents that exist but do not
// belong to the caller, so they are indistinguishable from missing ones.
func notFoundError(op string, id string) error {
	return pfirestore.WrapError(op, status.Error(codes.NotFound, fmt.Sprintf("document %s not found", id)))
}
