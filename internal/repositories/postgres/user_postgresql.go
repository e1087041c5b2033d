package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type UserPostgreSQL struct {
	pool *pools
}

func NewUserPostgreSQL(pool *pools) repositories.UserRepository {
	return &UserPostgreSQL{pool: pool}
}

func (r *UserPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).First(&user, id).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserPostgreSQL) GetByLogin(ctx context.Context, tx *gorm.DB, login string) (*models.User, error) {
	var user models.User
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).Where("login = ?", login).First(&user).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := r.pool.read(tx).WithContext(ctx).Model(&models.User{})
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.ClassGrade != nil {
		query = query.Where("class_grade = ?", *filters.ClassGrade)
	}
	if filters.Search != nil && *filters.Search != "" {
		pattern := "%" + *filters.Search + "%"
		query = query.Where("login ILIKE ? OR email ILIKE ? OR full_name ILIKE ?", pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset)
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserPostgreSQL) UpdateRole(ctx context.Context, tx *gorm.DB, id uint, role models.UserRole) error {
	result := r.pool.write(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserPostgreSQL) LinkStudent(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) error {
	link := models.TeacherStudent{TeacherID: teacherID, StudentID: studentID}
	return r.pool.write(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "teacher_id"}, {Name: "student_id"}},
		DoNothing: true,
	}).Create(&link).Error
}

func (r *UserPostgreSQL) UnlinkStudent(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) error {
	result := r.pool.write(tx).WithContext(ctx).
		Where("teacher_id = ? AND student_id = ?", teacherID, studentID).
		Delete(&models.TeacherStudent{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserPostgreSQL) ListStudents(ctx context.Context, tx *gorm.DB, teacherID uint) ([]*models.User, error) {
	var students []*models.User
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).
			Joins("JOIN teacher_students ts ON ts.student_id = users.id").
			Where("ts.teacher_id = ?", teacherID).
			Order("users.full_name ASC").
			Find(&students).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *UserPostgreSQL) IsTeacherOf(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) (bool, error) {
	var count int64
	err := r.pool.read(tx).WithContext(ctx).
		Model(&models.TeacherStudent{}).
		Where("teacher_id = ? AND student_id = ?", teacherID, studentID).
		Count(&count).Error
	return count > 0, err
}
