package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/tweet-pipeline/internal/transport/http/handler"
	"github.com/ErlanBelekov/tweet-pipeline/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	collectionHandler *handler.CollectionHandler,
	tweetHandler *handler.TweetHandler,
	apiKey string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	auth := middleware.APIKey(apiKey)

	collections := r.Group("/collections", auth)
	collections.POST("", collectionHandler.Submit)
	collections.GET("", collectionHandler.Status)
	collections.DELETE("/:id", collectionHandler.Terminate)

	users := r.Group("/users", auth)
	users.GET("/:username", tweetHandler.GetProfile)
	users.GET("/:username/tweets", tweetHandler.ListTweets)
	users.GET("/:username/runs", collectionHandler.ListRuns)

	return r
}
