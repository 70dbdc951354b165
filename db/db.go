package db

import (
	"Gin_postgres_redis_library/models"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err = Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Credential{}, &models.Book{}, &models.BorrowRecord{}, &models.EmailLog{}); err != nil {
		return err
	}

	// 同一用户同一本书最多一条未归还记录
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_user_book
	  ON %s (user_id, book_id)
	  WHERE status = 'BORROWED';
	`, models.BorrowTable, models.BorrowTable)).Error; err != nil {
		return err
	}

	// 扫描器按到期日查询未归还记录
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_due_date
	  ON %s (due_date)
	  WHERE status = 'BORROWED' AND return_date IS NULL;
	`, models.BorrowTable, models.BorrowTable)).Error; err != nil {
		return err
	}

	// 去重：同一次触发对同一收件人的同一条借阅只记一条
	if err := db.Exec(fmt.Sprintf(`DROP INDEX IF EXISTS %s_recipient_trigger;`, models.EmailLogTable)).Error; err != nil {
		return err
	}
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_recipient_trigger_record
	  ON %s (recipient, meta_trigger_id, meta_record_id)
	  WHERE meta_trigger_id <> '';
	`, models.EmailLogTable, models.EmailLogTable)).Error; err != nil {
		return err
	}

	return nil
}
