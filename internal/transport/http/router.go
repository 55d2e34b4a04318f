package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contest-engine/internal/app"
)

// NewRouter builds the gin engine with the full contest engine surface.
func NewRouter(service *app.ContestService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), Principal)

	handler := NewHandler(service)
	ws := NewWSHandler(service)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	authed := r.Group("", RequireAuth)
	{
		authed.GET("/contests", handler.ListContests)
		authed.GET("/contests/:id", handler.GetContest)
		authed.POST("/contests/:id/join", handler.Join)
		authed.GET("/contests/:id/questions", handler.Questions)
		authed.POST("/contests/:id/answers", handler.Submit)
		authed.GET("/contests/:id/me", handler.Progress)
		authed.GET("/contests/:id/leaderboard", handler.Leaderboard)
		authed.GET("/contests/:id/leaderboard/ws", ws.Stream)
	}

	admin := r.Group("", RequireAdmin)
	{
		admin.POST("/contests", handler.CreateContest)
		admin.PATCH("/contests/:id", handler.UpdateContest)
		admin.GET("/contests/:id/questions/manage", handler.ManageQuestions)
		admin.POST("/contests/:id/questions", handler.AddQuestion)
		admin.POST("/contests/:id/questions/import", handler.ImportQuestions)
		admin.POST("/contests/:id/questions/attach", handler.AttachQuestions)
		admin.PATCH("/questions/:id", handler.UpdateQuestion)
		admin.DELETE("/questions/:id", handler.DeleteQuestion)
	}

	return r
}
