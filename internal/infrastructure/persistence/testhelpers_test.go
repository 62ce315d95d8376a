package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/infrastructure/event"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory sqlite database with the lifecycle
// schema. A single connection serializes transactions the way row locks
// would on Postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), nil, "silent")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newOutboxPublisher() *event.OutboxPublisher {
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	return event.NewOutboxPublisher(serializer)
}

func hoodieDetails() order.Details {
	return order.Details{
		ProductName:    "Heavyweight Hoodie",
		Fabric:         "400 GSM fleece",
		Colour:         "sage",
		SizeBreakdown:  "M:30,L:20",
		SampleQuantity: 2,
		BulkQuantity:   50,
		UnitPrice:      decimal.NewFromInt(900),
	}
}
