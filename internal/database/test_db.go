package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InitTestDB 每次返回独立的内存数据库
func InitTestDB() *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		panic("failed to connect test database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic("failed to get test database handle")
	}
	// 单连接保证写操作串行
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		panic("failed to migrate test database")
	}
	return db
}

func CleanTestDB(db *gorm.DB) {
	if db == nil {
		return
	}
	_ = Close(db)
}
