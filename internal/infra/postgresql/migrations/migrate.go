package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createLeadsTable(),
		createCampaignsTables(),
		createEmailRecordsTable(),
		createSendLedgerTables(),
	})
	return m.Migrate()
}

func createLeadsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_leads",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.LeadModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LeadModel{})
		},
	}
}

func createCampaignsTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaigns",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CampaignModel{}, &repository.CampaignMemberModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status)`,
				`CREATE INDEX IF NOT EXISTS idx_campaign_members_lead ON campaign_members (lead_id, email_status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CampaignMemberModel{}, &repository.CampaignModel{})
		},
	}
}

func createEmailRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_email_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailRecordModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_email_records_lead_sent ON email_records (lead_id, sent_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailRecordModel{})
		},
	}
}

func createSendLedgerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_send_ledger",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&repository.DailySendLogModel{},
				&repository.SuppressionModel{},
				&repository.WarmupStateModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.WarmupStateModel{},
				&repository.SuppressionModel{},
				&repository.DailySendLogModel{},
			)
		},
	}
}
