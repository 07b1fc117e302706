package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
	"github.com/uplay-sg/api/internal/repositories"
)

const userCollection = "users"

// UserRepository persists loyalty accounts keyed by the authenticated user ID.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// FindByID loads the user by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return userFromDocument(doc.ID, doc.Data), nil
}

// Save upserts the user document.
func (r *UserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, errors.New("user repository: user id is required")
	}

	doc := userToDocument(user, time.Now().UTC())
	if _, err := r.base.Set(ctx, user.ID, doc); err != nil {
		return domain.User{}, err
	}
	return userFromDocument(user.ID, doc), nil
}

type userDocument struct {
	DisplayName   string    `firestore:"displayName,omitempty"`
	Email         string    `firestore:"email,omitempty"`
	TotalSpent    int64     `firestore:"totalSpent"`
	TotalBookings int       `firestore:"totalBookings"`
	TierID        string    `firestore:"tierId,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func userToDocument(user domain.User, now time.Time) userDocument {
	doc := userDocument{
		DisplayName:   strings.TrimSpace(user.DisplayName),
		Email:         strings.ToLower(strings.TrimSpace(user.Email)),
		TotalSpent:    user.TotalSpent,
		TotalBookings: user.TotalBookings,
		TierID:        strings.TrimSpace(user.TierID),
		CreatedAt:     user.CreatedAt.UTC(),
		UpdatedAt:     now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

func userFromDocument(id string, doc userDocument) domain.User {
	return domain.User{
		ID:            id,
		DisplayName:   doc.DisplayName,
		Email:         doc.Email,
		TotalSpent:    doc.TotalSpent,
		TotalBookings: doc.TotalBookings,
		TierID:        doc.TierID,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
