package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
)

// ContactKind says how an invited contact is identified
type ContactKind string

const (
	ContactFacebook ContactKind = "facebook"
	ContactEmail    ContactKind = "email"
	ContactPlayer   ContactKind = "player" // a player's invite code, which is their user id
)

// Contact is one invitee as entered by the game creator
type Contact struct {
	Kind  ContactKind `json:"kind"`
	Value string      `json:"value"`
}

// Resolution is the outcome for one contact. Err is an UnknownContact
// rejection when nobody matches, or a storage error.
type Resolution struct {
	Contact  Contact
	PlayerID string
	Name     string
	Err      error
}

// Directory maps login tokens and contacts to registered users
type Directory struct {
	users    storage.UserStore
	verifier *Verifier
}

// NewDirectory creates a directory over users
func NewDirectory(users storage.UserStore, verifier *Verifier) *Directory {
	return &Directory{users: users, verifier: verifier}
}

// Verifier returns the token verifier
func (d *Directory) Verifier() *Verifier { return d.verifier }

// Login verifies token and returns the matching user, registering them on first
// sight.
func (d *Directory) Login(ctx context.Context, token string) (domain.User, error) {
	claims, err := d.verifier.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return d.users.UpsertUser(ctx, domain.User{
		ExternalID: claims.Subject,
		Name:       name,
		Email:      claims.Email,
	})
}

// Authenticate verifies token and returns the already registered user.
func (d *Directory) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := d.verifier.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	u, err := d.users.UserByExternalID(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: login required", ErrUnauthenticated)
	}
	return u, err
}

// ResolveContacts looks every contact up independently, keeping input order
func (d *Directory) ResolveContacts(ctx context.Context, contacts []Contact) []Resolution {
	out := make([]Resolution, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, d.resolve(ctx, c))
	}
	return out
}

func (d *Directory) resolve(ctx context.Context, c Contact) Resolution {
	var (
		u   domain.User
		err error
	)
	switch c.Kind {
	case ContactFacebook:
		u, err = d.users.UserByExternalID(ctx, c.Value)
	case ContactEmail:
		u, err = d.users.UserByEmail(ctx, c.Value)
	case ContactPlayer:
		u, err = d.users.GetUser(ctx, c.Value)
	default:
		err = storage.ErrNotFound
	}

	if errors.Is(err, storage.ErrNotFound) {
		err = &domain.Rejection{
			Kind:   domain.KindUnknownContact,
			Target: c.Value,
			Detail: fmt.Sprintf("no player found for %s %q", c.Kind, c.Value),
		}
	}
	if err != nil {
		return Resolution{Contact: c, Err: err}
	}
	return Resolution{Contact: c, PlayerID: u.ID, Name: u.Name}
}

// ParseContacts splits the comma separated invite fields of a create request.
// Blank entries are skipped.
func ParseContacts(facebookCSV, emailCSV, playerCSV string) []Contact {
	var contacts []Contact
	add := func(kind ContactKind, csv string) {
		for _, v := range strings.Split(csv, ",") {
			if v = strings.TrimSpace(v); v != "" {
				contacts = append(contacts, Contact{Kind: kind, Value: v})
			}
		}
	}
	add(ContactFacebook, facebookCSV)
	add(ContactEmail, emailCSV)
	add(ContactPlayer, playerCSV)
	return contacts
}
