package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/app"
	"github.com/linkmage/analyzer/config"
	"github.com/linkmage/analyzer/logging"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	logger    *zap.Logger
)

// init builds the service once per cold start
func init() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to build service", zap.Error(err))
	}
	chiLambda = chiadapter.NewV2(a.Server.Router())
	logger.Info("lambda cold start complete", zap.String("store", cfg.SelectedStore()))
}

// Handler proxies API Gateway HTTP API events to the router
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if err != nil {
		logger.Error("lambda proxy failed", zap.String("path", req.RawPath), zap.Error(err))
	}
	return resp, err
}

func main() {
	lambda.Start(Handler)
}
