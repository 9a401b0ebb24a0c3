package models

// Counter holds the last issued sequence number for one calendar year. The
// primary key is a string like "cr_number_2026". Rows are created lazily on
// the first change request of a year and never deleted.
type Counter struct {
	ID  string `gorm:"primaryKey;type:varchar(32)"`
	Seq uint64 `gorm:"not null;default:0"`
}
