package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/notary/cmd/server"
)

var notaryCmd = &cobra.Command{
	Use:   "notary",
	Short: "Notary is the authentication core behind a Hasura GraphQL engine",
	Long: `Notary owns sessions, bearer tokens and the authorization webhook for a
Hasura GraphQL engine. It verifies logins, issues and renews tokens, binds
them into signed cookies, and answers the engine's per-request
authorization checks.`,
}

func Execute() {
	if err := notaryCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	notaryCmd.AddCommand(server.ServerCmd)
}
