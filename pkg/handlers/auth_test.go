package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

func TestLoginCreatesMissingProfile(t *testing.T) {
	env := newTestEnv(t)

	// an account without a profile row, as left behind by a failed
	// best-effort upsert during registration
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: "orphan@example.com", Password: string(hash)}
	require.NoError(t, env.store.CreateUser(user))

	_, err = env.store.GetProfile(user.ID)
	require.ErrorIs(t, err, database.ErrNotFound)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email":    "orphan@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	profile := decode(t, rec)["profile"].(map[string]interface{})
	assert.Equal(t, "orphan", profile["full_name"])

	stored, err := env.store.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "orphan", stored.FullName)
}
