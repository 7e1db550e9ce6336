package services

import (
	"crm_advocacia_go/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialServiceConfigure(t *testing.T) {
	db := setupIntimacaoTestDB(t)
	svc := NewCredentialService(db, newTestVault(t))

	t.Run("Creates encrypted credentials with default tribunal", func(t *testing.T) {
		p, err := svc.Configure("user-1", CredentialInput{
			OABNumber:      " 12345 ",
			PortalUsername: "maria.silva",
			PortalPassword: "senha-secreta",
			Name:           "Maria Silva",
		})
		require.NoError(t, err)

		assert.Equal(t, "user-1", p.ID)
		assert.Equal(t, "12345", p.OABNumber)
		assert.Equal(t, models.DefaultTribunal, p.Tribunal)
		assert.True(t, p.Active)
		assert.True(t, p.IsNew)
		assert.NotEqual(t, "senha-secreta", p.PortalPassword.Ciphertext)

		plaintext, err := svc.PortalPassword(p)
		require.NoError(t, err)
		assert.Equal(t, "senha-secreta", plaintext)
	})

	t.Run("Password column never holds plaintext", func(t *testing.T) {
		var raw string
		require.NoError(t, db.Raw("SELECT portal_password FROM practitioner_credentials WHERE id = ?", "user-1").Scan(&raw).Error)
		assert.NotContains(t, raw, "senha-secreta")
		assert.Contains(t, raw, `"authTag"`)
	})

	t.Run("Upsert on the same user", func(t *testing.T) {
		require.NoError(t, svc.MarkOnboarded("user-1"))

		p, err := svc.Configure("user-1", CredentialInput{
			OABNumber:      "54321",
			PortalUsername: "maria.silva",
			PortalPassword: "nova-senha",
			Tribunal:       "tjsp",
		})
		require.NoError(t, err)
		assert.Equal(t, "54321", p.OABNumber)
		assert.Equal(t, "TJSP", p.Tribunal)
		assert.False(t, p.IsNew)

		plaintext, err := svc.PortalPassword(p)
		require.NoError(t, err)
		assert.Equal(t, "nova-senha", plaintext)

		var count int64
		db.Model(&models.Practitioner{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Missing fields", func(t *testing.T) {
		_, err := svc.Configure("user-2", CredentialInput{OABNumber: "1"})
		assert.Error(t, err)

		_, err = svc.Configure("", CredentialInput{OABNumber: "1", PortalUsername: "u", PortalPassword: "p"})
		assert.Error(t, err)
	})
}

func TestCredentialServiceQueries(t *testing.T) {
	db := setupIntimacaoTestDB(t)
	svc := NewCredentialService(db, newTestVault(t))

	for _, id := range []string{"user-a", "user-b", "user-c"} {
		_, err := svc.Configure(id, CredentialInput{OABNumber: id, PortalUsername: id, PortalPassword: "x"})
		require.NoError(t, err)
	}
	require.NoError(t, svc.Deactivate("user-b"))
	assert.ErrorIs(t, svc.Deactivate("user-z"), ErrPractitionerNotFound)

	active, err := svc.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = svc.GetActive("user-b")
	assert.ErrorIs(t, err, ErrPractitionerNotFound)

	p, err := svc.GetActive("user-c")
	require.NoError(t, err)
	assert.Equal(t, "user-c", p.OABNumber)

	t.Run("Tampered password fails integrity", func(t *testing.T) {
		p.PortalPassword.AuthTag = flipHex(t, p.PortalPassword.AuthTag)
		_, err := svc.PortalPassword(p)
		assert.ErrorIs(t, err, ErrCredentialIntegrity)
	})

	t.Run("Missing password", func(t *testing.T) {
		_, err := svc.PortalPassword(&models.Practitioner{})
		assert.ErrorIs(t, err, ErrInvalidEnvelope)
	})
}
