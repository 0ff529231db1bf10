package domain

import (
	"strings"

	"github.com/hilthontt/tourchat/internal/infrastructure/validate"
)

// Identity is the authenticated caller as vouched for by the auth layer.
// A zero ID means the caller is anonymous.
type Identity struct {
	ID          string `json:"id" bson:"id"`
	DisplayName string `json:"displayName" bson:"display_name"`
	PhotoRef    string `json:"photoRef,omitempty" bson:"photo_ref,omitempty"`
}

var validateIdentityID = validate.Compose(
	validate.Required(),
	validate.MaxLength(128),
	validate.NoSpaces(),
)

func NewIdentity(id, displayName, photoRef string) (*Identity, error) {
	id = strings.TrimSpace(id)
	if err := validateIdentityID(id); err != nil {
		return nil, NewValidationError("identity", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Anonymous"
	}

	return &Identity{
		ID:          id,
		DisplayName: displayName,
		PhotoRef:    strings.TrimSpace(photoRef),
	}, nil
}

func (i *Identity) Authenticated() bool {
	return i != nil && i.ID != ""
}
