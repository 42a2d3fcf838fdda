package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/classtrack/lms/internal/pkg/errcode"
	"github.com/classtrack/lms/internal/pkg/response"
	"github.com/classtrack/lms/internal/service"
)

type CourseHandler struct {
	courses *service.CourseService
}

func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

type createCourseRequest struct {
	Name string `json:"name"`
}

func (h *CourseHandler) Create(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	course, err := h.courses.Create(c.Request.Context(), getUserID(c), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, course)
}

func (h *CourseHandler) Get(c *gin.Context) {
	courseID := c.Param("course_id")
	if courseID == "" {
		response.Error(c, errcode.ErrInvalid, "course_id required")
		return
	}
	course, err := h.courses.Get(c.Request.Context(), getUserID(c), courseID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, course)
}
