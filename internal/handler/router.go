package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/notebase-ai/notebase/internal/middleware"
)

type RouterDeps struct {
	Notebooks *NotebookHandler
	Sources   *SourceHandler
	Chat      *ChatHandler
	Studio    *StudioHandler
	Files     *FileHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/notebooks", deps.Notebooks.Create)
	authGroup.GET("/notebooks", deps.Notebooks.List)
	authGroup.GET("/notebooks/:id", deps.Notebooks.Get)
	authGroup.PUT("/notebooks/:id", deps.Notebooks.Update)
	authGroup.DELETE("/notebooks/:id", deps.Notebooks.Delete)

	authGroup.POST("/notebooks/:id/sources", deps.Sources.Add)
	authGroup.GET("/notebooks/:id/sources", deps.Sources.List)
	authGroup.GET("/sources/:id", deps.Sources.Get)
	authGroup.PUT("/sources/:id", deps.Sources.Update)
	authGroup.PUT("/sources/:id/active", deps.Sources.SetActive)
	authGroup.POST("/sources/:id/reingest", deps.Sources.Reingest)
	authGroup.DELETE("/sources/:id", deps.Sources.Delete)

	authGroup.POST("/notebooks/:id/chat/sessions", deps.Chat.CreateSession)
	authGroup.GET("/notebooks/:id/chat/sessions", deps.Chat.ListSessions)
	authGroup.DELETE("/chat/sessions/:id", deps.Chat.DeleteSession)
	authGroup.GET("/chat/sessions/:id/messages", deps.Chat.ListMessages)
	authGroup.POST("/chat/sessions/:id/messages", deps.Chat.Ask)

	authGroup.POST("/notebooks/:id/studio/jobs", deps.Studio.Submit)
	authGroup.GET("/notebooks/:id/studio/jobs", deps.Studio.List)
	authGroup.GET("/studio/jobs/:id", deps.Studio.Get)
	authGroup.GET("/studio/jobs/:id/events", deps.Studio.Events)
	authGroup.POST("/studio/jobs/:id/cancel", deps.Studio.Cancel)
	authGroup.POST("/studio/jobs/:id/export", deps.Studio.Export)

	// exported documents carry notebook ids in their keys, keep them behind
	// auth like everything else
	authGroup.GET("/files/*key", deps.Files.Get)
}
