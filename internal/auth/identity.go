// Package auth resolves the caller identity forwarded by the authenticating
// gateway.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type Role string

const (
	RoleCivilian Role = "civilian"
	RoleAgency   Role = "agency"
	RoleAdmin    Role = "admin"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderRole     = "X-User-Role"
	HeaderAgencyID = "X-Agency-ID"
)

var (
	ErrMissingIdentity = errors.New("authentication credentials were not provided")
	ErrInvalidIdentity = errors.New("invalid identity headers")
)

// Identity is the authenticated caller. AgencyID is set only for agency staff.
type Identity struct {
	Role     Role
	UserID   int64
	AgencyID int64
}

func (i Identity) IsAdmin() bool  { return i.Role == RoleAdmin }
func (i Identity) IsAgency() bool { return i.Role == RoleAgency }

// FromHeaders builds an Identity from the gateway headers.
func FromHeaders(h http.Header) (Identity, error) {
	rawUser := strings.TrimSpace(h.Get(HeaderUserID))
	rawRole := strings.ToLower(strings.TrimSpace(h.Get(HeaderRole)))
	if rawUser == "" || rawRole == "" {
		return Identity{}, ErrMissingIdentity
	}

	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil || userID < 1 {
		return Identity{}, fmt.Errorf("%w: bad %s", ErrInvalidIdentity, HeaderUserID)
	}

	id := Identity{Role: Role(rawRole), UserID: userID}
	switch id.Role {
	case RoleCivilian, RoleAdmin:
	case RoleAgency:
		agencyID, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderAgencyID)), 10, 64)
		if err != nil || agencyID < 1 {
			return Identity{}, fmt.Errorf("%w: agency role requires %s", ErrInvalidIdentity, HeaderAgencyID)
		}
		id.AgencyID = agencyID
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidIdentity, rawRole)
	}
	return id, nil
}
