package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
)

var contactsCategory string

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Inspect and manage contacts",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		all, err := env.Store.ListContacts(ctx)
		if err != nil {
			return err
		}

		shown := 0
		for _, c := range all {
			if contactsCategory != "" && string(c.Category) != contactsCategory {
				continue
			}
			review := ""
			if c.NeedsManualReview {
				review = " [review]"
			}
			fmt.Printf("%s  %-10s %-6s score=%.0f  %s %s  %s %s%s\n",
				c.ID, c.Category, c.Status, c.LeadScore,
				c.FirstName, c.LastName, c.Email, c.Phone, review)
			shown++
		}
		fmt.Printf("%d contacts\n", shown)
		return nil
	},
}

var contactsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one contact as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Store.GetContact(ctx, args[0])
		if err != nil {
			return err
		}
		if c == nil {
			return eris.Errorf("contacts: no contact with id %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	},
}

var contactsArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a contact",
	Long:  "Marks a contact archived. The record is kept; archived contacts are skipped by the lifecycle sweeper.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Store.GetContact(ctx, args[0])
		if err != nil {
			return err
		}
		if c == nil {
			return eris.Errorf("contacts: no contact with id %s", args[0])
		}
		if c.Status == contact.StatusArchived {
			fmt.Printf("Contact %s is already archived\n", c.ID)
			return nil
		}

		c.Status = contact.StatusArchived
		if err := env.Store.UpdateContact(ctx, c); err != nil {
			return err
		}

		fmt.Printf("Archived contact %s\n", c.ID)
		return nil
	},
}

func init() {
	contactsListCmd.Flags().StringVar(&contactsCategory, "category", "", "filter by category (lead, client, ...)")
	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsShowCmd)
	contactsCmd.AddCommand(contactsArchiveCmd)
	rootCmd.AddCommand(contactsCmd)
}
