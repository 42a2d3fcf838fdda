package service

import (
	"context"
	"strings"
	"time"

	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
)

type CourseService struct {
	courses *repo.CourseRepo
}

func NewCourseService(courses *repo.CourseRepo) *CourseService {
	return &CourseService{courses: courses}
}

func (s *CourseService) Create(ctx context.Context, userID, name string) (*model.Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().Unix()
	course := &model.Course{
		ID:      newID(),
		OwnerID: userID,
		Name:    name,
		Ctime:   now,
		Mtime:   now,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Get(ctx context.Context, userID, courseID string) (*model.Course, error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.OwnerID != userID {
		return nil, appErr.ErrNotFound
	}
	return course, nil
}
