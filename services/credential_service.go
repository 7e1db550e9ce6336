package services

import (
	"crm_advocacia_go/models"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPractitionerNotFound is returned when no active credential set exists for a user
var ErrPractitionerNotFound = errors.New("advogado não encontrado")

// CredentialInput is the payload accepted when a practitioner configures portal access
type CredentialInput struct {
	OABNumber      string
	PortalUsername string
	PortalPassword string
	Tribunal       string
	Name           string
	Email          string
}

// CredentialService persists practitioner portal credentials, encrypted at rest
type CredentialService struct {
	DB    *gorm.DB
	Vault *CredentialVault
}

func NewCredentialService(db *gorm.DB, vault *CredentialVault) *CredentialService {
	return &CredentialService{DB: db, Vault: vault}
}

// Configure upserts the credential set for a user. The password is only ever stored encrypted.
func (s *CredentialService) Configure(userID string, input CredentialInput) (*models.Practitioner, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(input.OABNumber) == "" || strings.TrimSpace(input.PortalUsername) == "" || input.PortalPassword == "" {
		return nil, errors.New("numeroOAB, usuarioPJE and senhaPJE are required")
	}

	secret, err := s.Vault.Encrypt(input.PortalPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt portal password: %w", err)
	}

	tribunal := strings.ToUpper(strings.TrimSpace(input.Tribunal))
	if tribunal == "" {
		tribunal = models.DefaultTribunal
	}

	practitioner := models.Practitioner{
		ID:             userID,
		Name:           input.Name,
		Email:          input.Email,
		OABNumber:      strings.TrimSpace(input.OABNumber),
		PortalUsername: strings.TrimSpace(input.PortalUsername),
		PortalPassword: secret,
		Tribunal:       tribunal,
		Active:         true,
		IsNew:          true,
	}

	// Re-configuring keeps IsNew as it was; only a successful collection clears it
	err = s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "email", "oab_number", "portal_username", "portal_password", "tribunal", "active", "updated_at", "deleted_at",
		}),
	}).Create(&practitioner).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	return s.GetActive(userID)
}

// GetActive loads one active practitioner by user id
func (s *CredentialService) GetActive(userID string) (*models.Practitioner, error) {
	var p models.Practitioner
	err := s.DB.Where("id = ? AND active = ?", userID, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPractitionerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load practitioner: %w", err)
	}
	return &p, nil
}

// ListActive returns every practitioner with an active credential set
func (s *CredentialService) ListActive() ([]models.Practitioner, error) {
	var practitioners []models.Practitioner
	if err := s.DB.Where("active = ?", true).Order("created_at ASC").Find(&practitioners).Error; err != nil {
		return nil, fmt.Errorf("failed to list practitioners: %w", err)
	}
	return practitioners, nil
}

// PortalPassword decrypts the stored password for a single use
func (s *CredentialService) PortalPassword(p *models.Practitioner) (string, error) {
	if p.PortalPassword.IsZero() {
		return "", ErrInvalidEnvelope
	}
	return s.Vault.Decrypt(p.PortalPassword)
}

// MarkOnboarded clears the new-practitioner flag after the first successful collection
func (s *CredentialService) MarkOnboarded(userID string) error {
	return s.DB.Model(&models.Practitioner{}).
		Where("id = ?", userID).
		Update("is_new", false).Error
}

// Deactivate stops scheduled collection for a practitioner
func (s *CredentialService) Deactivate(userID string) error {
	result := s.DB.Model(&models.Practitioner{}).
		Where("id = ?", userID).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}
