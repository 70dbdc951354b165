package db

import (
	"Gin_postgres_redis_library/models"
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BooksQuery struct {
	Q     string // 模糊搜索：title/author
	Genre string
	Page  int
	Size  int
}

type PagedBooks struct {
	Total int64         `json:"total"`
	Books []models.Book `json:"books"`
}

func (r *Repo) CreateBook(ctx context.Context, b *models.Book) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.AvailableCopies == 0 {
		b.AvailableCopies = b.TotalCopies
	}
	return mapErr(r.DB.WithContext(ctx).Create(b).Error)
}

func (r *Repo) FindBookByID(ctx context.Context, id string) (*models.Book, error) {
	var b models.Book
	if err := r.DB.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *Repo) ListBooks(ctx context.Context, q BooksQuery) (*PagedBooks, error) {
	page, size := clampPage(q.Page, q.Size, 100)

	tx := r.DB.WithContext(ctx).Model(&models.Book{})
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", pat, pat)
	}
	if g := strings.TrimSpace(q.Genre); g != "" {
		tx = tx.Where("LOWER(genre) = ?", strings.ToLower(g))
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var books []models.Book
	if err := tx.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&books).Error; err != nil {
		return nil, err
	}
	return &PagedBooks{Total: total, Books: books}, nil
}

// BookPatch carries optional admin edits; nil fields are left alone.
type BookPatch struct {
	Title       *string
	Author      *string
	Genre       *string
	Rating      *float64
	TotalCopies *int
	Description *string
	CoverURL    *string
	CoverColor  *string
	Summary     *string
}

// UpdateBook applies the patch; a change of TotalCopies shifts AvailableCopies by
// the same delta and is refused when it would drop below the copies on loan.
func (r *Repo) UpdateBook(ctx context.Context, id string, p BookPatch) (*models.Book, error) {
	var out models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&out, "id = ?", id).Error; err != nil {
			return mapErr(err)
		}
		upd := map[string]any{}
		setStr := func(col string, v *string) {
			if v != nil {
				upd[col] = strings.TrimSpace(*v)
			}
		}
		setStr("title", p.Title)
		setStr("author", p.Author)
		setStr("genre", p.Genre)
		setStr("description", p.Description)
		setStr("cover_url", p.CoverURL)
		setStr("cover_color", p.CoverColor)
		setStr("summary", p.Summary)
		if p.Rating != nil {
			upd["rating"] = *p.Rating
		}
		if p.TotalCopies != nil {
			onLoan := out.TotalCopies - out.AvailableCopies
			if *p.TotalCopies < onLoan {
				return ErrBookInUse
			}
			upd["total_copies"] = *p.TotalCopies
			upd["available_copies"] = *p.TotalCopies - onLoan
		}
		if len(upd) == 0 {
			return nil
		}
		if err := tx.Model(&models.Book{}).Where("id = ?", id).Updates(upd).Error; err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) DeleteBook(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.BorrowRecord{}).
			Where("book_id = ? AND status = ?", id, models.BorrowBorrowed).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrBookInUse
		}
		if err := tx.Where("book_id = ?", id).Delete(&models.BorrowRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Book{ID: id})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
