package repo

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 表结构；外键全部挂在子表的 belongs-to 上，保证 sqlite 建表时内联约束

type UserModel struct {
	ID           string    `gorm:"primaryKey;size:32"`
	Name         string    `gorm:"size:128;not null"`
	Email        string    `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string    `gorm:"size:100;not null"`
	Department   string    `gorm:"size:64"`
	Role         string    `gorm:"size:16;not null;default:User"`
	Avatar       string    `gorm:"size:512"`
	Status       string    `gorm:"size:16;not null;default:Active"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
	LastLogin    *time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        string     `gorm:"primaryKey;size:32"`
	UserID    string     `gorm:"size:32;not null;index"`
	User      *UserModel `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Token     string     `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (SessionModel) TableName() string { return "sessions" }

type InvoiceModel struct {
	ID             string          `gorm:"primaryKey;size:32"`
	InvoiceNumber  string          `gorm:"uniqueIndex;size:64;not null"`
	UserID         *string         `gorm:"size:32;index"`
	User           *UserModel      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL"`
	UserName       string          `gorm:"size:128"`
	Amount         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status         string          `gorm:"size:16;not null;default:Pending;index"`
	IssueDate      string          `gorm:"size:10"`
	DueDate        *string         `gorm:"size:10"`
	Source         string          `gorm:"size:32;not null;default:manual"`
	FreshserviceID *string         `gorm:"size:64;index"`
	RawData        *string         `gorm:"type:text"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (InvoiceModel) TableName() string { return "invoices" }

type InvoiceItemModel struct {
	ID          string          `gorm:"primaryKey;size:32"`
	InvoiceID   string          `gorm:"size:32;not null;index"`
	Invoice     *InvoiceModel   `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
	Description string          `gorm:"size:512;not null"`
	Quantity    int             `gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Position    int             `gorm:"not null;default:0"`
}

func (InvoiceItemModel) TableName() string { return "invoice_items" }

// Migrate 建表（父表在前）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{}, &SessionModel{}, &InvoiceModel{}, &InvoiceItemModel{})
}
