package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookController struct{ *Srv }

func NewBookController(s *Srv) *BookController { return &BookController{Srv: s} }

// GET /api/books?q=&genre=&page=&size=
func (bc *BookController) ListBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := bc.Repo.ListBooks(c.Request.Context(), db.BooksQuery{
		Q:     c.Query("q"),
		Genre: c.Query("genre"),
		Page:  page,
		Size:  size,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/books/:id
func (bc *BookController) GetBook(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid uuid"})
		return
	}
	b, err := bc.Repo.FindBookByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"book": b})
}

type bookReq struct {
	Title       string  `json:"title" binding:"required,notblank,max=255"`
	Author      string  `json:"author" binding:"required,notblank,max=255"`
	Genre       string  `json:"genre" binding:"required,notblank,max=100"`
	Rating      float64 `json:"rating" binding:"gte=0,lte=5"`
	TotalCopies int     `json:"totalCopies" binding:"required,gte=1,lte=10000"`
	Description string  `json:"description" binding:"required,notblank"`
	CoverURL    string  `json:"coverUrl" binding:"required,max=512"`
	CoverColor  string  `json:"coverColor" binding:"required,hexcolor"`
	Summary     string  `json:"summary" binding:"required,notblank"`
}

// POST /api/admin/books
func (bc *BookController) CreateBook(c *gin.Context) {
	var in bookReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	b := &models.Book{
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		Genre:           strings.TrimSpace(in.Genre),
		Rating:          in.Rating,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		Description:     in.Description,
		CoverURL:        in.CoverURL,
		CoverColor:      in.CoverColor,
		Summary:         in.Summary,
	}
	if err := bc.Repo.CreateBook(c.Request.Context(), b); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"book": b})
}

type bookPatchReq struct {
	Title       *string  `json:"title" binding:"omitempty,notblank,max=255"`
	Author      *string  `json:"author" binding:"omitempty,notblank,max=255"`
	Genre       *string  `json:"genre" binding:"omitempty,notblank,max=100"`
	Rating      *float64 `json:"rating" binding:"omitempty,gte=0,lte=5"`
	TotalCopies *int     `json:"totalCopies" binding:"omitempty,gte=0,lte=10000"`
	Description *string  `json:"description"`
	CoverURL    *string  `json:"coverUrl" binding:"omitempty,max=512"`
	CoverColor  *string  `json:"coverColor" binding:"omitempty,hexcolor"`
	Summary     *string  `json:"summary"`
}

// PATCH /api/admin/books/:id
func (bc *BookController) UpdateBook(c *gin.Context) {
	var in bookPatchReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	b, err := bc.Repo.UpdateBook(c.Request.Context(), c.Param("id"), db.BookPatch{
		Title:       in.Title,
		Author:      in.Author,
		Genre:       in.Genre,
		Rating:      in.Rating,
		TotalCopies: in.TotalCopies,
		Description: in.Description,
		CoverURL:    in.CoverURL,
		CoverColor:  in.CoverColor,
		Summary:     in.Summary,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"book": b})
}

// DELETE /api/admin/books/:id
func (bc *BookController) DeleteBook(c *gin.Context) {
	if err := bc.Repo.DeleteBook(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
