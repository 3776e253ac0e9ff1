package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestFromHeaders(t *testing.T) {
	id, err := FromHeaders(headers(HeaderUserID, "4", HeaderRole, "Civilian"))
	require.NoError(t, err)
	assert.Equal(t, Identity{Role: RoleCivilian, UserID: 4}, id)

	id, err = FromHeaders(headers(HeaderUserID, "9", HeaderRole, "agency", HeaderAgencyID, "2"))
	require.NoError(t, err)
	assert.Equal(t, Identity{Role: RoleAgency, UserID: 9, AgencyID: 2}, id)
	assert.True(t, id.IsAgency())

	id, err = FromHeaders(headers(HeaderUserID, "1", HeaderRole, "admin", HeaderAgencyID, "5"))
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
	assert.Zero(t, id.AgencyID)
}

func TestFromHeaders_Rejects(t *testing.T) {
	_, err := FromHeaders(headers())
	assert.ErrorIs(t, err, ErrMissingIdentity)

	_, err = FromHeaders(headers(HeaderUserID, "abc", HeaderRole, "civilian"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = FromHeaders(headers(HeaderUserID, "3", HeaderRole, "agency"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = FromHeaders(headers(HeaderUserID, "3", HeaderRole, "superuser"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
