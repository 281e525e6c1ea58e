package main

import (
	"fmt"

	"github.com/harunnryd/kabu/internal/store"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionStore, err := store.Open(cfg.Session.Dir)
		if err != nil {
			return err
		}
		defer sessionStore.Close()

		ids, err := sessionStore.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		for _, id := range ids {
			session, err := sessionStore.Load(id)
			if err != nil {
				fmt.Printf("%s  (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Printf("%s  %s  %d messages\n", id, session.UpdatedAt.Format("2006-01-02 15:04"), len(session.Messages))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
