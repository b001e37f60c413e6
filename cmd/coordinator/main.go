package main

import (
	"context"
	"log"

	"github.com/openfed/fedcoord/fedcoordd"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fedcoordd.StartCoordinator(ctx, cancel); err != nil {
		log.Fatalf("coordinator exited with error: %s", err.Error())
	}
}
