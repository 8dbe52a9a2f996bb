package main

import (
	"log"

	_ "github.com/dhima/followup-engine/docs"
	"github.com/dhima/followup-engine/internal/api"
)

// @title Follow-up Engine API
// @version 1.0
// @description Schedules and executes multi-step outreach follow-ups.
// @description
// @description ## Features
// @description - **Sequences**: generate one follow-up per step and contact, honoring delays and send windows
// @description - **Trigger evaluation**: replies, bounces, unsubscribes and org policy gate every send
// @description - **Batch execution**: due follow-ups run in bounded concurrent chunks
// @description - **Lifecycle events**: sent, failed and skipped outcomes are published to Kafka
// @description
// @description Every /api/v1 route is scoped by the X-Org-ID header.

// @contact.name API Support
// @contact.url https://github.com/dhima/followup-engine
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	srv, err := api.NewServer()
	if err != nil {
		log.Fatalf("api server init: %v", err)
	}
	if err := srv.Serve(); err != nil {
		log.Fatalf("api server stopped: %v", err)
	}
}
