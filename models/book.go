package models

import "time"

const BookTable = "lib_books"

type Book struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null;index" json:"title"`
	Author          string    `gorm:"size:255;not null" json:"author"`
	Genre           string    `gorm:"size:100;not null;index" json:"genre"`
	Rating          float64   `gorm:"not null;default:0" json:"rating"`
	TotalCopies     int       `gorm:"not null;default:1" json:"totalCopies"`
	AvailableCopies int       `gorm:"not null;default:0" json:"availableCopies"`
	Description     string    `gorm:"type:text" json:"description"`
	CoverURL        string    `gorm:"size:512" json:"coverUrl"`
	CoverColor      string    `gorm:"size:7" json:"coverColor"`
	Summary         string    `gorm:"type:text" json:"summary"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Book) TableName() string { return BookTable }
