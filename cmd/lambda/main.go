package main

import (
	"context"
	"log"

	"littlebot/internal/app"
	"littlebot/internal/config"
	"littlebot/internal/handler"
	"littlebot/internal/logger"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ginLambda *ginadapter.GinLambda

func handleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, false); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)

	slackHandler, err := app.NewHandler(context.Background(), cfg)
	if err != nil {
		logger.GetLogger().Fatal("failed to create slack handler", zap.Error(err))
	}

	ginLambda = ginadapter.New(handler.NewRouter(slackHandler))
	lambda.Start(handleRequest)
}
