package db

import (
	"Gin_postgres_redis_library/models"
	"context"
	"strings"

	"gorm.io/gorm"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return mapErr(r.DB.WithContext(ctx).Create(u).Error)
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID, ip, ua string) error {
	// 用数据库时间更准，且避免并发覆盖：NOW() + 计数自增
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": gorm.Expr("NOW()"),
			"last_seen_at":  gorm.Expr("NOW()"),
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", gorm.Expr("NOW()")).Error
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// 列表（分页 + 关键词 + 状态）
type ListUsersResult struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func (r *Repo) ListUsers(ctx context.Context, q string, status models.UserStatus, page, size int) (ListUsersResult, error) {
	page, size = clampPage(page, size, 100)

	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListUsersResult{}, err
	}

	var users []models.User
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error; err != nil {
		return ListUsersResult{}, err
	}
	return ListUsersResult{Users: users, Total: total}, nil
}

func (r *Repo) SetUserStatus(ctx context.Context, userID string, status models.UserStatus) (*models.User, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindUserByID(ctx, userID)
}

func (r *Repo) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteAdmins 把配置里的邮箱提升为已审核管理员，返回受影响行数
func (r *Repo) PromoteAdmins(ctx context.Context, emails []string) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email IN ? AND (role <> ? OR status <> ?)", emails, models.RoleAdmin, models.UserApproved).
		Updates(map[string]any{"role": models.RoleAdmin, "status": models.UserApproved})
	return res.RowsAffected, res.Error
}

// 删除用户：有未归还的借阅时拒绝；借阅记录被邮件日志引用，有历史的账号也不删
func (r *Repo) DeleteUserByID(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open, all int64
		if err := tx.Model(&models.BorrowRecord{}).
			Where("user_id = ? AND status = ?", id, models.BorrowBorrowed).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrBookInUse
		}
		if err := tx.Model(&models.BorrowRecord{}).Where("user_id = ?", id).Count(&all).Error; err != nil {
			return err
		}
		if all > 0 {
			return ErrHasHistory
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Credential{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Credentials

func (r *Repo) LoadUserCredentials(ctx context.Context, userID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("user_id=?", userID).Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return mapErr(r.DB.WithContext(ctx).Create(c).Error)
}

func (r *Repo) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	return r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    newCount,
			"clone_warning": cloneWarn,
			"last_used_at":  gorm.Expr("NOW()"),
		}).Error
}

func (r *Repo) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id=?", credID).First(&c).Error; err != nil {
		return nil, nil, mapErr(err)
	}
	var u models.User
	if err := r.DB.WithContext(ctx).Where("id=?", c.UserID).First(&u).Error; err != nil {
		return nil, nil, mapErr(err)
	}
	return &u, &c, nil
}

func clampPage(page, size, max int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > max {
		size = 20
	}
	return page, size
}
