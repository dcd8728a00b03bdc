package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Employee represents the employees table
type Employee struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Shift represents the shifts table. One row per employee per date,
// upserted on that pair.
type Shift struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	EmployeeID  string `gorm:"uniqueIndex:idx_employee_date;not null" json:"employee_id"`
	WorkDate    string `gorm:"uniqueIndex:idx_employee_date;not null" json:"work_date"` // YYYY-MM-DD
	StartTime   string `gorm:"not null" json:"start_time"`                              // HH:MM
	EndTime     string `gorm:"not null" json:"end_time"`                                // HH:MM
	IsAvailable bool   `gorm:"default:true" json:"is_available"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Client represents the clients table
type Client struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	LicenseNumber string    `json:"license_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// Vehicle represents the vehicles table
type Vehicle struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Plate     string `gorm:"unique;not null" json:"plate"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Mileage   int    `json:"mileage"`
	Status    string `gorm:"default:available" json:"status"` // available, rented, maintenance
	CreatedAt time.Time `json:"created_at"`
}

// Contract represents the contracts table
type Contract struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Ref           string    `gorm:"unique;not null" json:"ref"`
	ClientID      uint      `gorm:"not null" json:"client_id"`
	VehicleID     uint      `gorm:"not null" json:"vehicle_id"`
	StartDate     string    `gorm:"not null" json:"start_date"` // YYYY-MM-DD
	EndDate       string    `json:"end_date"`                   // YYYY-MM-DD, planned return
	DailyRateCents int64    `json:"daily_rate_cents"`
	Status        string    `gorm:"default:open" json:"status"` // open, closed
	CreatedAt     time.Time `json:"created_at"`
}

// Booking represents the bookings table
type Booking struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ContractID         uint       `gorm:"not null" json:"contract_id"`
	AssignedEmployeeID *string    `json:"assigned_employee_id"`
	ScheduledDate      string     `gorm:"not null;index" json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime      *string    `json:"scheduled_time"`                       // HH:MM
	Confirmed          bool       `gorm:"default:false" json:"confirmed"`
	Completed          bool       `gorm:"default:false" json:"completed"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Invoice represents the invoices table
type Invoice struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ContractID  uint       `gorm:"not null" json:"contract_id"`
	Ref         string     `gorm:"unique;not null" json:"ref"`
	AmountCents int64      `json:"amount_cents"`
	DueDate     string     `json:"due_date"` // YYYY-MM-DD
	Paid        bool       `gorm:"default:false" json:"paid"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Document represents the documents table (metadata only; blobs live in
// external storage under StorageKey)
type Document struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ContractID  uint      `gorm:"not null;index" json:"contract_id"`
	StorageKey  string    `gorm:"unique;not null" json:"storage_key"`
	FileName    string    `gorm:"not null" json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Settings is the singleton availability settings row
type Settings struct {
	ID                    uint `gorm:"primaryKey" json:"id"`
	MaxConcurrentReturns  int  `gorm:"default:3" json:"max_concurrent_returns"`
	ReturnDurationMinutes int  `gorm:"default:30" json:"return_duration_minutes"`
	BufferMinutes         int  `gorm:"default:15" json:"buffer_minutes"`
}

// ServiceKey represents the service_keys table
type ServiceKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"key"`
	Name       string     `gorm:"not null" json:"name"`
	KeyPreview string     `json:"key_preview"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	KeyID              uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date               string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount       int    `gorm:"default:0" json:"request_count"`
	AvailabilityChecks int    `gorm:"default:0" json:"availability_checks"`
	BookingsCreated    int    `gorm:"default:0" json:"bookings_created"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// InitDB initializes the database connection and migrates the schema
func InitDB() *gorm.DB {
	var db *gorm.DB
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		dbPath := os.Getenv("DATA_PATH")
		if dbPath == "" {
			dbPath = "backoffice.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	}

	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	Migrate(db)

	return db
}

// Migrate runs the schema auto-migration
func Migrate(db *gorm.DB) {
	db.AutoMigrate(
		&Employee{}, &Shift{}, &Client{}, &Vehicle{}, &Contract{},
		&Booking{}, &Invoice{}, &Document{}, &Settings{},
		&ServiceKey{}, &APIUsage{}, &MasterUser{},
	)
}
