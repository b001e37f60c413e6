package main

import (
	"log"

	"github.com/openfed/fedcoord/fedcoordd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedcoordd",
		Short: "Federated Coordination Daemon",
		Long:  `Federated Coordination Daemon manages the lifecycle of the round coordinator.`,
	}

	coordinatorCmd := fedcoordd.NewCoordinatorCmd()

	rootCmd.AddCommand(coordinatorCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
