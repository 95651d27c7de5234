package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"

	"github.com/longhornrumble/picasso/infrastructure/config"
	"github.com/longhornrumble/picasso/infrastructure/di"
)

// container survives across warm invocations.
var container *di.Container

// init runs during cold start
func init() {
	coldStartTime := time.Now()
	log.Println("Lambda cold start initiated")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	log.Printf("Lambda cold start completed in %v", time.Since(coldStartTime))
}

// main serves the router over a response-streaming Function URL, which is
// what lets SSE frames reach the client as the model produces them.
func main() {
	lambdaurl.Start(container.Handler)
}
