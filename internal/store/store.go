package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guest-visits-backend/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	// Transaction runs fn against a Store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	GetEntryView(ctx context.Context, id string) (*EntryView, error)
	CreateEntry(ctx context.Context, e *model.Entry) error
	SaveEntry(ctx context.Context, e *model.Entry) error
	ListWindowEntries(ctx context.Context, from, toExclusive string) ([]EntryView, error)
	SoftDeleteEntriesFrom(ctx context.Context, from, actorID, at string) (int64, error)
	DeleteAllEntries(ctx context.Context) (int64, error)
	RecentResponsibles(ctx context.Context, userID string, limit int) ([]string, error)

	GetPass(ctx context.Context, id string) (*model.Pass, error)
	CreatePass(ctx context.Context, p *model.Pass) error
	SavePass(ctx context.Context, p *model.Pass) error

	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	GetRoleGrants(ctx context.Context, roleID string) (*RoleGrants, error)
	GetRoleByName(ctx context.Context, name string) (*model.Role, error)
	UpsertPermissions(ctx context.Context, perms []model.Permission) error
	UpsertRole(ctx context.Context, role model.Role, codes []string) (*model.Role, error)

	UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Entries ---

func (s *gormStore) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	var e model.Entry
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *gormStore) entryViews(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&model.Entry{}).
		Select("entries.*, passes.status AS pass_status").
		Joins("LEFT JOIN passes ON passes.id = entries.current_pass_id")
}

// GetEntryView returns the entry with its pass status, deleted or not.
func (s *gormStore) GetEntryView(ctx context.Context, id string) (*EntryView, error) {
	var rows []EntryView
	if err := s.entryViews(ctx).Where("entries.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *gormStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *gormStore) SaveEntry(ctx context.Context, e *model.Entry) error {
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return fmt.Errorf("failed to save entry %s: %w", e.ID, err)
	}
	return nil
}

// ListWindowEntries returns visible entries scheduled in [from, toExclusive),
// ordered by scheduled instant. Bounds use the stored datetime layout, which
// sorts lexicographically.
func (s *gormStore) ListWindowEntries(ctx context.Context, from, toExclusive string) ([]EntryView, error) {
	rows := []EntryView{}
	err := s.entryViews(ctx).
		Where("entries.deleted_at IS NULL").
		Where("entries.datetime >= ? AND entries.datetime < ?", from, toExclusive).
		Order("entries.datetime ASC, entries.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entries in window: %w", err)
	}
	return rows, nil
}

// SoftDeleteEntriesFrom stamps deletion audit on every visible entry
// scheduled at or after from.
func (s *gormStore) SoftDeleteEntriesFrom(ctx context.Context, from, actorID, at string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Entry{}).
		Where("deleted_at IS NULL AND datetime >= ?", from).
		Updates(map[string]any{"deleted_at": at, "deleted_by": actorID})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete future entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAllEntries removes every entry and pass row. It returns the number
// of entries removed.
func (s *gormStore) DeleteAllEntries(ctx context.Context) (int64, error) {
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := db.Delete(&model.Pass{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete passes: %w", err)
	}
	res := db.Delete(&model.Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecentResponsibles returns the non-empty responsible values of the user's
// latest visible entries, newest first.
func (s *gormStore) RecentResponsibles(ctx context.Context, userID string, limit int) ([]string, error) {
	values := []string{}
	err := s.db.WithContext(ctx).
		Model(&model.Entry{}).
		Where("created_by = ? AND deleted_at IS NULL", userID).
		Where("responsible IS NOT NULL AND responsible <> ''").
		Order("created_at DESC").
		Limit(limit).
		Pluck("responsible", &values).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load responsible values: %w", err)
	}
	return values, nil
}

// --- Passes ---

func (s *gormStore) GetPass(ctx context.Context, id string) (*model.Pass, error) {
	var p model.Pass
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *gormStore) CreatePass(ctx context.Context, p *model.Pass) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create pass for entry %s: %w", p.EntryID, err)
	}
	return nil
}

func (s *gormStore) SavePass(ctx context.Context, p *model.Pass) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save pass %s: %w", p.ID, err)
	}
	return nil
}

// --- Users and roles ---

func (s *gormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *gormStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Username, err)
	}
	return nil
}

func (s *gormStore) GetRoleGrants(ctx context.Context, roleID string) (*RoleGrants, error) {
	var role model.Role
	if err := s.db.WithContext(ctx).First(&role, "id = ?", roleID).Error; err != nil {
		return nil, notFound(err)
	}

	codes := []string{}
	if err := s.db.WithContext(ctx).
		Model(&model.RolePermission{}).
		Where("role_id = ?", roleID).
		Order("permission_code").
		Pluck("permission_code", &codes).Error; err != nil {
		return nil, fmt.Errorf("failed to load grants of role %s: %w", roleID, err)
	}
	return &RoleGrants{Role: role, Codes: codes}, nil
}

func (s *gormStore) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := s.db.WithContext(ctx).First(&role, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return &role, nil
}

func (s *gormStore) UpsertPermissions(ctx context.Context, perms []model.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"description"}),
	}).Create(&perms).Error
}

// UpsertRole creates the role named role.Name or updates it, then replaces
// its grants with codes.
func (s *gormStore) UpsertRole(ctx context.Context, role model.Role, codes []string) (*model.Role, error) {
	db := s.db.WithContext(ctx)

	existing, err := s.GetRoleByName(ctx, role.Name)
	switch {
	case err == nil:
		existing.Description = role.Description
		existing.InterfaceType = role.InterfaceType
		if err := db.Save(existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update role %s: %w", role.Name, err)
		}
		role = *existing
	case errors.Is(err, ErrNotFound):
		if role.ID == "" {
			role.ID = uuid.NewString()
		}
		if err := db.Create(&role).Error; err != nil {
			return nil, fmt.Errorf("failed to create role %s: %w", role.Name, err)
		}
	default:
		return nil, err
	}

	if err := db.Where("role_id = ?", role.ID).Delete(&model.RolePermission{}).Error; err != nil {
		return nil, fmt.Errorf("failed to clear grants of role %s: %w", role.Name, err)
	}
	if len(codes) > 0 {
		grants := make([]model.RolePermission, len(codes))
		for i, c := range codes {
			grants[i] = model.RolePermission{RoleID: role.ID, PermissionCode: c}
		}
		if err := db.Create(&grants).Error; err != nil {
			return nil, fmt.Errorf("failed to grant permissions to role %s: %w", role.Name, err)
		}
	}
	return &role, nil
}

// --- Push subscriptions ---

func (s *gormStore) UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id"}),
	}).Create(sub).Error
}

func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *gormStore) ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
