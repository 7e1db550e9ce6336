package main

import (
	"bytes"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"collect", "deadlines", "reindex", "deactivate", "genkey", "encrypt-check"}, names)
}

func TestGenkeyCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"genkey"})

	require.NoError(t, root.Execute())

	secret := strings.TrimSpace(out.String())
	raw, err := base64.StdEncoding.DecodeString(secret)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestCheckCredentials(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:ctl_"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Practitioner{}))

	vault, err := services.NewCredentialVault("ctl-test-secret")
	require.NoError(t, err)
	creds := services.NewCredentialService(db, vault)

	good, err := creds.Configure(uuid.New().String(), services.CredentialInput{
		OABNumber: "111CE", PortalUsername: "u", PortalPassword: "p",
	})
	require.NoError(t, err)

	// Encrypted under another key
	otherVault, err := services.NewCredentialVault("another-secret")
	require.NoError(t, err)
	foreign, err := services.NewCredentialService(db, otherVault).Configure(uuid.New().String(), services.CredentialInput{
		OABNumber: "222CE", PortalUsername: "u", PortalPassword: "p",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	failed := checkCredentials(&out, creds, []models.Practitioner{*good, *foreign})

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "OK    "+good.ID)
	assert.Contains(t, out.String(), "FAIL  "+foreign.ID)
	assert.Contains(t, out.String(), "2 checked, 1 failed")
	assert.NotContains(t, out.String(), "senha")
}

func TestDeactivate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:ctl_"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Practitioner{}))

	vault, err := services.NewCredentialVault("ctl-test-secret")
	require.NoError(t, err)
	creds := services.NewCredentialService(db, vault)

	p, err := creds.Configure(uuid.New().String(), services.CredentialInput{
		OABNumber: "333CE", PortalUsername: "u", PortalPassword: "p",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, deactivate(&out, creds, p.ID))
	assert.Contains(t, out.String(), p.ID+" deactivated")

	active, err := creds.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	err = deactivate(&out, creds, "desconhecido")
	assert.ErrorIs(t, err, services.ErrPractitionerNotFound)
}

func TestDeactivateRequiresID(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"deactivate"})
	assert.Error(t, root.Execute())
}

func TestParseFlagDate(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	d, err := parseFlagDate("", loc)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseFlagDate("2024-03-18", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, loc), *d)

	_, err = parseFlagDate("18/03/2024", loc)
	assert.Error(t, err)
}

func TestCollectRejectsBadDates(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"collect", "--from", "18/03/2024"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from")
}
