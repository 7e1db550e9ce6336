package services

import (
	"log"

	"gorm.io/gorm"
)

// InitializeSearchIndex creates the FTS5 table over intimações and its triggers
func InitializeSearchIndex(db *gorm.DB) error {
	log.Println("Initializing intimação search index...")

	err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS intimacoes_fts USING fts5(
			intimacao_id UNINDEXED,
			practitioner_id UNINDEXED,
			process_number,
			tribunal,
			teor,
			summary,
			notes,
			tokenize='unicode61 remove_diacritics 2'
		)
	`).Error
	if err != nil {
		return err
	}

	if err := createIntimacaoTriggers(db); err != nil {
		return err
	}

	log.Println("Intimação search index initialized")
	return nil
}

func createIntimacaoTriggers(db *gorm.DB) error {
	// Drop existing triggers first (in case of schema changes)
	db.Exec(`DROP TRIGGER IF EXISTS intimacoes_fts_insert`)
	db.Exec(`DROP TRIGGER IF EXISTS intimacoes_fts_update`)
	db.Exec(`DROP TRIGGER IF EXISTS intimacoes_fts_delete`)

	err := db.Exec(`
		CREATE TRIGGER IF NOT EXISTS intimacoes_fts_insert AFTER INSERT ON intimacoes
		BEGIN
			INSERT INTO intimacoes_fts (intimacao_id, practitioner_id, process_number, tribunal, teor, summary, notes)
			VALUES (
				NEW.id,
				NEW.practitioner_id,
				NEW.process_number,
				COALESCE(NEW.tribunal, ''),
				COALESCE(NEW.teor, ''),
				COALESCE(NEW.summary, ''),
				COALESCE(NEW.practitioner_notes, '')
			);
		END
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		CREATE TRIGGER IF NOT EXISTS intimacoes_fts_update AFTER UPDATE ON intimacoes
		WHEN OLD.teor IS NOT NEW.teor
		   OR OLD.summary IS NOT NEW.summary
		   OR OLD.practitioner_notes IS NOT NEW.practitioner_notes
		   OR OLD.tribunal IS NOT NEW.tribunal
		BEGIN
			DELETE FROM intimacoes_fts WHERE intimacao_id = OLD.id;
			INSERT INTO intimacoes_fts (intimacao_id, practitioner_id, process_number, tribunal, teor, summary, notes)
			VALUES (
				NEW.id,
				NEW.practitioner_id,
				NEW.process_number,
				COALESCE(NEW.tribunal, ''),
				COALESCE(NEW.teor, ''),
				COALESCE(NEW.summary, ''),
				COALESCE(NEW.practitioner_notes, '')
			);
		END
	`).Error
	if err != nil {
		return err
	}

	return db.Exec(`
		CREATE TRIGGER IF NOT EXISTS intimacoes_fts_delete AFTER DELETE ON intimacoes
		BEGIN
			DELETE FROM intimacoes_fts WHERE intimacao_id = OLD.id;
		END
	`).Error
}

// RebuildSearchIndex repopulates the FTS5 table from scratch
func RebuildSearchIndex(db *gorm.DB) error {
	log.Println("Rebuilding intimação search index...")

	if err := db.Exec(`DELETE FROM intimacoes_fts`).Error; err != nil {
		return err
	}

	err := db.Exec(`
		INSERT INTO intimacoes_fts (intimacao_id, practitioner_id, process_number, tribunal, teor, summary, notes)
		SELECT
			id,
			practitioner_id,
			process_number,
			COALESCE(tribunal, ''),
			COALESCE(teor, ''),
			COALESCE(summary, ''),
			COALESCE(practitioner_notes, '')
		FROM intimacoes
	`).Error
	if err != nil {
		return err
	}

	var count int64
	db.Table("intimacoes_fts").Count(&count)
	log.Printf("Search index rebuilt with %d intimações", count)
	return nil
}

// SyncSearchIndex rebuilds the index when it lags behind the intimacoes table
func SyncSearchIndex(db *gorm.DB) error {
	var indexed, stored int64
	db.Table("intimacoes_fts").Count(&indexed)
	db.Table("intimacoes").Count(&stored)

	if indexed != stored {
		log.Printf("Search index out of sync (%d/%d). Rebuilding...", indexed, stored)
		return RebuildSearchIndex(db)
	}
	return nil
}
