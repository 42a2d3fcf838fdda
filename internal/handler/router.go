package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/classtrack/lms/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Courses   *CourseHandler
	Imports   *ImportHandler
	Files     *FileHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/courses", deps.Courses.Create)
	authGroup.GET("/courses/:course_id", deps.Courses.Get)
	authGroup.POST("/courses/:course_id/imports", deps.Imports.Trigger)
	authGroup.GET("/courses/:course_id/imports/preview", deps.Imports.Preview)
	authGroup.GET("/imports", deps.Imports.List)
	authGroup.GET("/imports/:import_id", deps.Imports.GetProgress)
	authGroup.POST("/imports/:import_id/cancel", deps.Imports.Cancel)

	// token-gated polling needs no session
	api.GET("/public/imports/:import_id", deps.Imports.GetPublicProgress)
	if deps.Files != nil {
		api.GET("/files/:key", deps.Files.Get)
	}
}
