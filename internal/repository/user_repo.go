package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cantogame/internal/database"
	"cantogame/internal/models"
)

// UserRepository reads the mirrored user directory and teacher associations
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, username, display_name, email, role, created_at"

// UpsertUser inserts a user or refreshes their profile and role
func (r *UserRepository) UpsertUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	existing, err := r.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			u.ID, u.Username, u.DisplayName, u.Email, string(u.Role), u.CreatedAt)
	} else {
		_, err = r.db.ExecContext(ctx,
			"UPDATE users SET username = ?, display_name = ?, email = ?, role = ? WHERE id = ?",
			u.Username, u.DisplayName, u.Email, string(u.Role), u.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// Associate links a student to a teacher. Repeating the call is harmless.
func (r *UserRepository) Associate(ctx context.Context, studentID, teacherID string) error {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM student_teacher_associations WHERE student_id = ? AND teacher_id = ?",
		studentID, teacherID)
	if err != nil {
		return fmt.Errorf("failed to check association: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO student_teacher_associations (student_id, teacher_id, created_at) VALUES (?, ?, ?)",
		studentID, teacherID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to associate student: %w", err)
	}
	return nil
}

// StudentIDs returns the IDs of a teacher's associated students
func (r *UserRepository) StudentIDs(ctx context.Context, teacherID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		"SELECT student_id FROM student_teacher_associations WHERE teacher_id = ? ORDER BY student_id", teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student ids: %w", err)
	}
	return ids, nil
}

// ListStudents returns a teacher's students, or every student when
// teacherID is empty
func (r *UserRepository) ListStudents(ctx context.Context, teacherID string) ([]models.User, error) {
	var (
		users []models.User
		err   error
	)
	if teacherID == "" {
		err = r.db.SelectContext(ctx, &users,
			"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY username",
			string(models.RoleStudent))
	} else {
		err = r.db.SelectContext(ctx, &users, `
			SELECT u.id, u.username, u.display_name, u.email, u.role, u.created_at
			FROM users u
			JOIN student_teacher_associations a ON a.student_id = u.id
			WHERE a.teacher_id = ?
			ORDER BY u.username
		`, teacherID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return users, nil
}

// ListTeachers returns every teacher, for class report delivery
func (r *UserRepository) ListTeachers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY username", string(models.RoleTeacher))
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}
	return users, nil
}
